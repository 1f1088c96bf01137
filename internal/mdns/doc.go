// Package mdns advertises the node on the local network once its link is
// attached, so the hub and installers can find the diagnostics endpoint by
// name instead of by DHCP lease.
//
// The advertisement is tied to the link: Advertise on attach, Withdraw on
// loss. Both are idempotent.
package mdns
