package switchbot

import "errors"

// Domain errors for the SwitchBot codec.
var (
	// ErrSizeMismatch is returned when a buffer is shorter (or, for fixed-size
	// models, longer) than the model requires.
	ErrSizeMismatch = errors.New("switchbot: payload size mismatch")

	// ErrUnknownModel is returned when the discriminant is not a known model.
	ErrUnknownModel = errors.New("switchbot: unknown model")

	// ErrEmptyPayload is returned when no service data is present to carry
	// the model discriminant.
	ErrEmptyPayload = errors.New("switchbot: empty service data")
)
