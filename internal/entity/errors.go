package entity

import "errors"

// Domain-specific errors for entity registration and table loading.
var (
	// ErrDuplicateEntity is returned when two entities share a name.
	ErrDuplicateEntity = errors.New("entity: duplicate name")

	// ErrUnknownBehavior is returned for a behavior name that is not recognised.
	ErrUnknownBehavior = errors.New("entity: unknown behavior")

	// ErrEmptyName is returned when a table row has no name.
	ErrEmptyName = errors.New("entity: empty name")

	// ErrTableFormat is returned for an entity table in an unsupported format.
	ErrTableFormat = errors.New("entity: unsupported table format")
)
