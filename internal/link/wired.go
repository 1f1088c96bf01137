package link

import "fmt"

// Wired is a Radio for fixed links. With an empty Interface it always
// reports connected, which suits development machines.
type Wired struct {
	Interface string
	SysfsRoot string
}

// Status implements Radio.
func (w Wired) Status() Status {
	if w.Interface == "" {
		return StatusConnected
	}
	root := w.SysfsRoot
	if root == "" {
		root = defaultSysfsRoot
	}
	if operstateUp(root, w.Interface) {
		return StatusConnected
	}
	return StatusDisconnected
}

// Begin implements Radio. Wired links attach on their own.
func (Wired) Begin(string, string) error { return nil }

// Reset implements Radio.
func (Wired) Reset(string) error { return nil }

// Scan implements Radio. There is nothing to scan on a wire.
func (Wired) Scan() ([]Network, error) { return nil, nil }

// Info implements Radio.
func (w Wired) Info() (Info, error) {
	if w.Interface == "" {
		return Info{SSID: "wired"}, nil
	}
	addr := ipv4Address(w.Interface)
	if addr == "" {
		return Info{}, fmt.Errorf("%w: %s", ErrNoInterface, w.Interface)
	}
	return Info{SSID: w.Interface, Address: addr}, nil
}
