package link

import "errors"

var (
	// ErrNoSSID is returned when an attach is requested without a target SSID.
	ErrNoSSID = errors.New("link: no ssid configured")

	// ErrBusy is returned when the radio worker queue is full.
	ErrBusy = errors.New("link: radio busy")

	// ErrNoInterface is returned when the configured interface does not exist.
	ErrNoInterface = errors.New("link: interface not found")
)
