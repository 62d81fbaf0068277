package utils

import "strings"

// ParseStateTopic extracts the home and device ids from a telemetry topic of
// the form homes/{homeID}/devices/{deviceID}/state. Empty ids mean the topic
// did not match.
func ParseStateTopic(topic string) (homeID, deviceID string) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != "homes" || parts[2] != "devices" || parts[4] != "state" {
		return "", ""
	}
	return parts[1], parts[3]
}
