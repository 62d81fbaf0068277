package utils

import "time"

// StreamMaxLen is the maximum length of the Redis stream buffering device reports
const StreamMaxLen int64 = 100

// DebounceWindow is how long the ingest loop waits to coalesce bursts of
// reports from the same device
const DebounceWindow = 2000 * time.Millisecond
