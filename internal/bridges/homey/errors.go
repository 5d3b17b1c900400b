package homey

import "errors"

// Domain errors for the Homey bridge package.
var (
	// ErrAdapterStopped is returned for requests made after Stop.
	ErrAdapterStopped = errors.New("homey: adapter stopped")

	// ErrMailboxFull is returned when the adapter cannot accept another
	// request without blocking.
	ErrMailboxFull = errors.New("homey: mailbox full")

	// ErrMalformedFrame is returned when an inbound frame is not a valid
	// envelope.
	ErrMalformedFrame = errors.New("homey: malformed frame")

	// ErrUnknownAdapter is returned when no adapter has the requested id.
	ErrUnknownAdapter = errors.New("homey: unknown adapter")

	// ErrInvalidCommand is returned for command requests that cannot be
	// parsed.
	ErrInvalidCommand = errors.New("homey: invalid command")
)
