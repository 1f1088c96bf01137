package entity

import (
	"fmt"
	"strings"
)

// Behavior is the kind of an entity.
type Behavior int

const (
	Control Behavior = iota
	Indicator
	Trigger
	Internal
)

// String returns the canonical table name of the behavior.
func (b Behavior) String() string {
	switch b {
	case Control:
		return "control"
	case Indicator:
		return "indicator"
	case Trigger:
		return "trigger"
	case Internal:
		return "internal"
	default:
		return fmt.Sprintf("behavior(%d)", int(b))
	}
}

// ParseBehavior accepts the canonical names plus the hub-side aliases
// "button" (Trigger) and "entities" (Internal).
func ParseBehavior(s string) (Behavior, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "control":
		return Control, nil
	case "indicator":
		return Indicator, nil
	case "trigger", "button":
		return Trigger, nil
	case "internal", "entities":
		return Internal, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownBehavior, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (b Behavior) MarshalText() ([]byte, error) {
	if b < Control || b > Internal {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBehavior, int(b))
	}
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, used by both the YAML
// and JSON table decoders.
func (b *Behavior) UnmarshalText(text []byte) error {
	parsed, err := ParseBehavior(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// persisted reports whether accepted writes are stored.
func (b Behavior) persisted() bool { return b == Control }

// consumesInbound reports whether the behavior may take inbound messages.
func (b Behavior) consumesInbound() bool { return b != Indicator }

// announced reports whether the entity appears in the announcement.
func (b Behavior) announced() bool { return b != Internal }
