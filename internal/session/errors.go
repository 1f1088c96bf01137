package session

import "errors"

var (
	// ErrNotConnected is returned when an operation needs an attached session.
	ErrNotConnected = errors.New("session: not connected")

	// ErrStaleListener is returned by a Listener from a previous session.
	ErrStaleListener = errors.New("session: listener belongs to a previous session")

	// ErrNoHandler is returned by Listen when the handler is nil.
	ErrNoHandler = errors.New("session: handler cannot be nil")

	// ErrNoBroker is returned when the broker address parameter is empty.
	ErrNoBroker = errors.New("session: broker address not configured")
)
