package node

import (
	"time"

	"github.com/nerrad567/gray-logic-node/internal/comm"
	"github.com/nerrad567/gray-logic-node/internal/entity"
)

// Snapshot is the state published by the loop for other goroutines.
type Snapshot struct {
	DeviceID  string            `json:"device_id"`
	Version   string            `json:"version"`
	BootID    string            `json:"boot_id"`
	StartedAt time.Time         `json:"started_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Link      LinkStatus        `json:"link"`
	Session   SessionStatus     `json:"session"`
	Sequence  comm.Status       `json:"sequence"`
	Entities  []entity.Snapshot `json:"entities"`
}

// LinkStatus describes the network link.
type LinkStatus struct {
	Phase    string `json:"phase"`
	Attempts int    `json:"attempts"`
	SSID     string `json:"ssid,omitempty"`
	RSSI     int    `json:"rssi,omitempty"`
	Address  string `json:"address,omitempty"`
}

// SessionStatus describes the broker session.
type SessionStatus struct {
	Phase    string `json:"phase"`
	Attempts int    `json:"attempts"`
	Sessions uint64 `json:"sessions"`
}

// Snapshot returns the state as of the last loop pass.
func (r *Runtime) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.snap
	s.Entities = append([]entity.Snapshot(nil), r.snap.Entities...)
	return s
}

func (r *Runtime) publishSnapshot() {
	ls := r.link.State()
	ss := r.session.State()
	s := Snapshot{
		DeviceID:  r.deviceID,
		Version:   r.version,
		BootID:    r.bootID,
		StartedAt: r.startedAt,
		UpdatedAt: r.clock.Now(),
		Link: LinkStatus{
			Phase:    ls.Phase.String(),
			Attempts: ls.Attempts,
			SSID:     r.netInfo.SSID,
			RSSI:     r.netInfo.RSSI,
			Address:  r.netInfo.Address,
		},
		Session: SessionStatus{
			Phase:    ss.Phase.String(),
			Attempts: ss.Attempts,
			Sessions: ss.Epoch,
		},
		Sequence: r.orch.Status(),
		Entities: r.orch.Registry().Snapshot(),
	}

	r.mu.Lock()
	r.snap = s
	r.mu.Unlock()
}
