package automation

import "errors"

// Sentinel errors returned by the engine; the web layer maps these to
// HTTP status codes with errors.Is.
var (
	// ErrValidation covers bad input: unknown mode names, malformed rules,
	// missing home association. Nothing is mutated and nothing is logged.
	ErrValidation = errors.New("invalid input")

	// ErrNotFound covers absent rule, log or device ids. For undo this is
	// terminal: callers must not retry.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyUndone is returned for a second undo of the same log.
	// The log's user response is terminal once written.
	ErrAlreadyUndone = errors.New("action already undone")

	// ErrNotReversible is returned when a log's action kind has no defined
	// inverse (set_mode, reduce_power).
	ErrNotReversible = errors.New("action cannot be undone")

	// ErrUndoExpired is returned when the undo window for a log has passed.
	ErrUndoExpired = errors.New("undo window expired")
)
