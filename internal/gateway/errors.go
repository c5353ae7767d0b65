package gateway

import "errors"

var (
	// ErrInvalidAdvertisement is returned for advert messages that cannot be
	// parsed (bad JSON, bad hex, empty service data).
	ErrInvalidAdvertisement = errors.New("gateway: invalid advertisement")

	// ErrRejected is returned when the registry refused a well-formed advert
	// (bad MAC, size mismatch, unknown model or registry full).
	ErrRejected = errors.New("gateway: advertisement rejected")

	// ErrMissingDependency is returned by NewGateway when a required
	// collaborator is nil.
	ErrMissingDependency = errors.New("gateway: missing dependency")
)
