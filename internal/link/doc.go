// Package link keeps the device's radio link attached without ever blocking
// the main loop.
//
// # Guard
//
// Guard.Poll is called on every loop iteration. It returns true while the
// radio reports an association and otherwise decides whether this pass may
// issue a new, non-blocking attach request:
//
//   - a target found absent by a scan is not retried for 30s
//   - after 5 failed attempts a one-shot scan checks the SSID is on air
//   - no new attempt while one is in flight (8s) or before the backoff delay
//   - the radio driver is reset at most every 5s before an attempt
//
// Backoff follows backoff.Default: 100ms doubling with up to 50ms jitter,
// saturating at 10s after the fifth failure.
//
// # Radios
//
// The Guard drives a Radio. NMCLI talks to NetworkManager through the nmcli
// command line tool and runs its slow operations on a private worker
// goroutine. Wired reports the operational state of a fixed interface and is
// used for Ethernet installs and development machines.
//
// # Thread Safety
//
// Guard is owned by the loop goroutine and is not safe for concurrent use.
// Radio implementations are safe for concurrent use.
package link
