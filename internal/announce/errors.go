package announce

import "errors"

// Domain-specific errors for announcement handling.
var (
	// ErrMalformedPayload is returned when the payload is not valid JSON.
	ErrMalformedPayload = errors.New("announce: malformed payload")

	// ErrIncompletePayload is returned when the payload lacks the device
	// descriptor or a non-empty component map.
	ErrIncompletePayload = errors.New("announce: incomplete payload")

	// ErrNoPayload is returned when publishing without a loaded payload.
	ErrNoPayload = errors.New("announce: no payload loaded")

	// ErrNotAttached is returned when publishing without a session.
	ErrNotAttached = errors.New("announce: session not attached")
)
