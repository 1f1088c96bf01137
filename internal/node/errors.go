package node

import "errors"

var (
	// ErrUnknownCommand indicates a Command value the runtime does not handle.
	ErrUnknownCommand = errors.New("node: unknown command")

	// ErrStopped indicates the runtime loop is no longer accepting commands.
	ErrStopped = errors.New("node: runtime stopped")
)
