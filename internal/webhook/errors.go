package webhook

import "errors"

// Domain errors for webhook handling.
var (
	// ErrInvalidURL is returned when a URL is empty, too long, or not an
	// absolute http(s) URL.
	ErrInvalidURL = errors.New("webhook: invalid URL")

	// ErrRegistryFull is returned when all slots are taken.
	ErrRegistryFull = errors.New("webhook: registry full")

	// ErrNotFound is returned when a URL is not registered.
	ErrNotFound = errors.New("webhook: not found")

	// ErrDeliveryFailed is returned when an endpoint refuses a delivery.
	ErrDeliveryFailed = errors.New("webhook: delivery failed")
)
