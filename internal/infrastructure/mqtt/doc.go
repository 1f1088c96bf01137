// Package mqtt adapts the Eclipse paho client to the session guard's
// Transport contract.
//
// This package manages:
//   - Broker options (TLS, keep-alive, clean session, last will)
//   - Non-blocking connect, subscribe and publish returning session.Attempt
//   - A bounded inbound queue filled from paho goroutines
//   - Bounded waiting for publish acknowledgements (Flush)
//   - Topic builders for discovery and availability
//
// # Architecture
//
// paho's own reconnect loop is disabled. The session guard decides when to
// call Connect, with its own backoff, and observes completion by polling the
// returned Attempt:
//
//	Session Guard ──Connect/Subscribe/Publish──▶ Transport ──▶ paho ──▶ broker
//	Session Guard ◀──────── inbound channel ◀─── Transport ◀── paho ◀── broker
//
// Subscriptions register no per-topic callback; every message goes through
// the default publish handler into the inbound channel. When the channel is
// full the message is dropped and counted rather than blocking paho.
//
// # Availability
//
// When an availability topic is configured the transport publishes the
// online payload (retained, QoS 1) on every connect, registers the offline
// payload as last will, and publishes it explicitly on Disconnect.
//
// # Security Considerations
//
//   - TLS 1.2 minimum when enabled
//   - Credentials are never logged
package mqtt
