// Package comm sequences the node's connection to the automation hub.
//
// The Orchestrator is polled once per loop iteration. Each pass it polls the
// link and session guards and advances through these stages:
//
//	AwaitLink -> AwaitSession -> AwaitAnnounce -> AwaitSubscribe -> Flushing -> Ready
//
// Losing the link or the session from any stage restarts the sequence at
// AwaitLink. Nothing is resumed part way.
//
// # Readiness
//
// CoarseReady is true from AwaitAnnounce on while the session is attached
// and the hub reports itself online. Outbound publishing only needs coarse
// readiness, so application start-up code can publish before the sequence
// finishes.
//
// FineReady is true in Ready once the application has called
// MarkApplicationInitDone. Entering Ready raises a one-shot edge that the
// application consumes with ConsumeReadyEdge to run its start-up work.
//
// # Flush Window
//
// Retained messages replayed on subscribe are stale commands. For a fixed
// window after subscribing, inbound messages reach Internal entities only;
// everything else is acknowledged by the broker client and dropped.
//
// # Thread Safety
//
// The Orchestrator is driven by a single goroutine and is not safe for
// concurrent use.
package comm
