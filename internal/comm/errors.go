package comm

import "errors"

// Domain-specific errors for the orchestrator.
var (
	// ErrNotReady is returned by Publish before coarse readiness.
	ErrNotReady = errors.New("comm: not ready to publish")

	// ErrStarted is returned when loading configuration after the first Poll.
	ErrStarted = errors.New("comm: orchestrator already started")
)
