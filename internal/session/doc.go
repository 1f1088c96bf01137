// Package session keeps the broker session attached on top of an attached
// link, without blocking the main loop.
//
// # Guard
//
// Guard.Poll returns false whenever the link is down, whatever its own
// state. With the link up it configures the Transport once per process,
// then retries Connect with the same saturating backoff as the link guard.
// Connect is asynchronous: the outcome of an Attempt is collected on a later
// pass. The pass that observes a successful attempt still returns false so
// callers treat "attached" and "ready to receive" as distinct moments; the
// next pass returns true.
//
// # Inbound messages
//
// The Transport pushes broker messages into a bounded channel from its own
// goroutines. Guard.Deliver drains that channel on the loop goroutine and
// hands each message to the installed Handler, so core state is never
// touched concurrently.
//
// Subscribing is only possible through a Listener, and a Listener only
// exists once a Handler has been installed for the current session:
//
//	l, err := guard.Listen(dispatch)
//	if err != nil { ... }
//	attempt, err := l.Subscribe(topic, 0)
//
// A Listener is bound to the session it was created in; after a reconnect it
// returns ErrStaleListener and a new one must be obtained.
package session
