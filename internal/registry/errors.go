package registry

import "errors"

// Domain errors for the device registry.
var (
	// ErrInvalidMAC is returned when an address is not in the
	// AA:BB:CC:DD:EE:FF form.
	ErrInvalidMAC = errors.New("registry: invalid MAC address")
)
