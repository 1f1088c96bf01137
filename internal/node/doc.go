// Package node is the device application runtime.
//
// It owns the single loop goroutine that drives the communication
// orchestrator and performs the device's own duties around it:
//
//   - on every entry into Ready: republish Control entities, publish the
//     software version, address and network info, pump, then mark the
//     application initialised
//   - a heartbeat entity written while fine-ready
//   - periodic network info ("SSID @ RSSI dB")
//   - an update trigger entity that logs to the logbook and suspends the
//     broker session
//   - mDNS advertisement tied to the link
//   - optional telemetry of link, session, sequence and entity changes
//
// Other goroutines (the diagnostics API) never touch the orchestrator.
// They read a Snapshot published by the loop and submit Commands that the
// loop executes on its next pass.
package node
