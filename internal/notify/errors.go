package notify

import "errors"

// Sentinel errors for the notify package. Check with errors.Is.
var (
	// ErrNotFound is returned when a notification id is unknown, including
	// one that was already invoked or dismissed.
	ErrNotFound = errors.New("notify: notification not found")

	// ErrNoAction is returned when invoking a notification raised without
	// an action.
	ErrNoAction = errors.New("notify: notification has no action")
)
