package prefs

import "errors"

// Domain-specific errors for preference storage.
var (
	// ErrReadOnly is returned when writing through a namespace opened read-only.
	ErrReadOnly = errors.New("prefs: namespace opened read-only")

	// ErrEnded is returned when a namespace handle is used after End.
	ErrEnded = errors.New("prefs: namespace already ended")

	// ErrEmptyNamespace is returned by Begin for an empty namespace name.
	ErrEmptyNamespace = errors.New("prefs: empty namespace")

	// ErrEmptyKey is returned when writing or removing an empty key.
	ErrEmptyKey = errors.New("prefs: empty key")

	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("prefs: unknown backend")
)
