package mdns

import "errors"

var (
	// ErrEmptyInstance indicates Advertise was called without an instance name.
	ErrEmptyInstance = errors.New("mdns: empty instance name")

	// ErrInvalidPort indicates a port outside 1-65535.
	ErrInvalidPort = errors.New("mdns: invalid port")
)
