package utils

import "log"

// InitLogging initializes logging
func InitLogging(level string) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
