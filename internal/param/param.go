// Package param is the read side of the device parameter store.
//
// The connectivity core never parses configuration itself; it asks a Source
// for named parameters each time it needs one, so values provisioned at
// runtime (for example new Wi-Fi credentials) take effect on the next
// attach attempt without a restart.
package param

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Parameter keys read by the core.
const (
	KeyWiFiSSID      = "wifi_ssid"
	KeyWiFiPass      = "wifi_pass"
	KeyDeviceID      = "device_id"
	KeyMQTTHost      = "mqtt_ip"
	KeyMQTTPort      = "mqtt_port"
	KeyMQTTUser      = "mqtt_user"
	KeyMQTTPass      = "mqtt_pass"
	KeyMQTTKeepAlive = "mqtt_keepalive_s"
	KeyAliveInterval = "iot_alive_ms"
	KeyFlushWindow   = "flush_ms"
)

// ErrEmpty is returned by the typed readers when the parameter has no value.
var ErrEmpty = errors.New("param: empty value")

// Source is the parameter collaborator consumed by the core.
type Source interface {
	// Param returns the raw value for key, or "" when unset.
	Param(key string) string

	// ParamObject returns a handle with typed readers, or nil when unset.
	ParamObject(key string) *Param
}

// Param is a single named parameter with typed readers.
type Param struct {
	Key   string
	Value string
}

// String returns the raw value.
func (p *Param) String() string {
	if p == nil {
		return ""
	}
	return p.Value
}

// ReadInt parses the value as a base-10 integer.
func (p *Param) ReadInt() (int, error) {
	s, err := p.nonEmpty()
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("param %s: %w", p.Key, err)
	}
	return n, nil
}

// ReadFloat parses the value as a float64.
func (p *Param) ReadFloat() (float64, error) {
	s, err := p.nonEmpty()
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("param %s: %w", p.Key, err)
	}
	return f, nil
}

// ReadBool reports whether the value is "true", "on" (any case) or "1".
func (p *Param) ReadBool() bool {
	s := strings.TrimSpace(p.String())
	return s == "1" || strings.EqualFold(s, "true") || strings.EqualFold(s, "on")
}

// ReadDuration accepts either a Go duration string ("20s") or a bare
// integer expressed in unit ("20" with unit time.Second).
func (p *Param) ReadDuration(unit time.Duration) (time.Duration, error) {
	s, err := p.nonEmpty()
	if err != nil {
		return 0, err
	}
	if n, convErr := strconv.ParseInt(s, 10, 64); convErr == nil {
		return time.Duration(n) * unit, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("param %s: %w", p.Key, err)
	}
	return d, nil
}

func (p *Param) nonEmpty() (string, error) {
	s := strings.TrimSpace(p.String())
	if s == "" {
		key := ""
		if p != nil {
			key = p.Key
		}
		return "", fmt.Errorf("%w: %s", ErrEmpty, key)
	}
	return s, nil
}

// Map is an in-memory Source. The zero value is not usable; call NewMap.
//
// Thread Safety:
//   - Safe for concurrent use; provisioning may Set while the loop reads.
type Map struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMap returns a Map seeded with values.
func NewMap(values map[string]string) *Map {
	m := &Map{values: make(map[string]string, len(values))}
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

// Param implements Source.
func (m *Map) Param(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key]
}

// ParamObject implements Source.
func (m *Map) ParamObject(key string) *Param {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil
	}
	return &Param{Key: key, Value: v}
}

// Set stores value under key.
func (m *Map) Set(key, value string) {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
}

// IntOr reads key as an integer, returning def when unset or invalid.
func IntOr(src Source, key string, def int) int {
	n, err := src.ParamObject(key).ReadInt()
	if err != nil {
		return def
	}
	return n
}

// DurationOr reads key as a duration in unit, returning def when unset or invalid.
func DurationOr(src Source, key string, unit, def time.Duration) time.Duration {
	d, err := src.ParamObject(key).ReadDuration(unit)
	if err != nil {
		return def
	}
	return d
}
