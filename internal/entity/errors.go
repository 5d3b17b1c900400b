package entity

import "errors"

// Sentinel errors for the entity package. Check with errors.Is.
var (
	// ErrEntityNotFound is returned when an entity id does not exist.
	ErrEntityNotFound = errors.New("entity: not found")

	// ErrEntityOwned is returned when a hub announces an entity id that is
	// already registered by another adapter.
	ErrEntityOwned = errors.New("entity: owned by another adapter")

	ErrInvalidEntity = errors.New("entity: invalid")
	ErrInvalidDomain = errors.New("entity: invalid domain")
)
