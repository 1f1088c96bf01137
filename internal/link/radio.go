package link

// Status is the radio's own view of the association.
type Status int

const (
	StatusIdle Status = iota
	StatusNoTarget
	StatusConnectFailed
	StatusDisconnected
	StatusConnectionLost
	StatusConnected
)

// String returns the diagnostic name logged for each status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusNoTarget:
		return "ssid_unavailable"
	case StatusConnectFailed:
		return "connect_failed"
	case StatusDisconnected:
		return "disconnected"
	case StatusConnectionLost:
		return "connection_lost"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// hint explains a non-connected status for field diagnosis.
func (s Status) hint() string {
	switch s {
	case StatusNoTarget:
		return "target network not visible; check ssid and range"
	case StatusConnectFailed:
		return "association rejected; check password"
	case StatusDisconnected:
		return "station disconnected"
	case StatusConnectionLost:
		return "association dropped; weak signal or access point restart"
	case StatusIdle:
		return "radio idle, attach in progress"
	default:
		return ""
	}
}

// Network is one scan result.
type Network struct {
	SSID    string
	Signal  int // percent, 0-100
	Channel int
}

// Info describes the active association.
type Info struct {
	SSID    string
	RSSI    int // dBm
	Address string
}

// Radio is the station-mode driver driven by Guard. Begin and Reset must
// return without waiting for the radio to settle.
type Radio interface {
	// Status reports the current association state.
	Status() Status

	// Begin requests association with ssid.
	Begin(ssid, password string) error

	// Reset disconnects, drops the active profile and reapplies hostname.
	Reset(hostname string) error

	// Scan lists visible networks.
	Scan() ([]Network, error)

	// Info describes the active association.
	Info() (Info, error)
}

// signalToRSSI maps NetworkManager's 0-100 quality to an approximate dBm.
func signalToRSSI(signal int) int {
	return signal/2 - 100
}
