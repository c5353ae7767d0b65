package command

import "errors"

// Domain errors for command handling.
var (
	// ErrInvalidPayload is returned when payload text is empty, has a
	// non-numeric token, or a value outside 0-255.
	ErrInvalidPayload = errors.New("command: invalid payload")

	// ErrInvalidAddress is returned when the target is not a MAC address.
	ErrInvalidAddress = errors.New("command: invalid address")

	// ErrQueueFull is returned when every slot is taken.
	ErrQueueFull = errors.New("command: queue full")

	// ErrInvalidRequest is returned when a request message cannot be parsed.
	ErrInvalidRequest = errors.New("command: invalid request")
)
