package prefs

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/database"
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// Store opens namespaces of persisted string values.
type Store interface {
	// Begin opens namespace. A read-only handle rejects writes.
	Begin(namespace string, readOnly bool) (Namespace, error)

	// Close releases the underlying storage.
	Close() error
}

// Namespace is an open view onto one namespace of a Store.
type Namespace interface {
	// GetString returns the stored value for key, or def when the key is
	// absent or cannot be read.
	GetString(key, def string) string

	// PutString stores value under key.
	PutString(key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error

	// End releases the handle.
	End() error
}

// Config selects and configures a backend.
type Config struct {
	Backend     string
	Path        string
	WALMode     bool
	BusyTimeout time.Duration
}

// Open creates the Store named by cfg.Backend.
//
// Parameters:
//   - cfg: Backend name and file settings
//
// Returns:
//   - Store: Ready-to-use store
//   - error: ErrUnknownBackend or a backend open failure
func Open(cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendSQLite:
		return OpenSQLite(database.Config{
			Path:        cfg.Path,
			WALMode:     cfg.WALMode,
			BusyTimeout: cfg.BusyTimeout,
		})
	case BackendBolt:
		return OpenBolt(cfg.Path)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// handle carries the bookkeeping shared by every backend's Namespace.
type handle struct {
	mu       sync.Mutex
	name     string
	readOnly bool
	ended    bool
}

func (h *handle) checkRead() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ended {
		return ErrEnded
	}
	return nil
}

func (h *handle) checkWrite(key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case h.ended:
		return ErrEnded
	case h.readOnly:
		return ErrReadOnly
	case key == "":
		return ErrEmptyKey
	}
	return nil
}

func (h *handle) End() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ended {
		return ErrEnded
	}
	h.ended = true
	return nil
}
