// Package entity bridges device-side values to broker topics.
//
// An Entity is one value the node exposes to the automation hub. Its
// Behavior decides how it treats writes and inbound messages:
//
//   - Control: read/write from both sides, persisted on every accepted write
//   - Indicator: device-to-hub only, never consumes inbound messages
//   - Trigger: stateless one-shot, reports a change once per write then clears
//   - Internal: used by the node itself (hub presence, heartbeat), never
//     announced, the only kind processed while retained messages are flushed
//
// The Registry holds every entity in table order and routes inbound
// messages to the first entity that consumes them.
//
// # Values
//
// Values are held as a tagged union (text, integer, float, boolean) and
// rendered to text at the broker boundary: booleans become "ON"/"OFF",
// floats are printed with the entity's precision and text passes through
// verbatim.
//
// # Thread Safety
//
// Entities and the Registry are not safe for concurrent use. They belong to
// the node's loop goroutine; other goroutines read them through snapshots.
package entity
