package mqtt

import (
	"fmt"
	"strings"
)

// DefaultDiscoveryPrefix is the hub's default discovery root.
const DefaultDiscoveryPrefix = "homeassistant"

// Topics provides builders for the node's fixed MQTT topics. Entity topics
// come from the entity table and are not built here.
//
//	topics := mqtt.Topics{Prefix: "homeassistant"}
//	topics.DeviceConfig("virgo-01")
//	// Returns: "homeassistant/device/virgo-01/config"
type Topics struct {
	// Prefix is the discovery root. Empty means DefaultDiscoveryPrefix.
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultDiscoveryPrefix
	}
	return strings.TrimSuffix(t.Prefix, "/")
}

// DeviceConfig returns the retained device discovery topic.
//
// Example: homeassistant/device/virgo-01/config
func (t Topics) DeviceConfig(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/config", t.prefix(), deviceID)
}

// HubStatus returns the topic the hub uses to announce its own birth and
// death ("online"/"offline").
//
// Example: homeassistant/status
func (t Topics) HubStatus() string {
	return t.prefix() + "/status"
}

// Availability returns the device availability topic used for the birth
// message and the last will.
//
// Example: virgo-01/availability
func (Topics) Availability(deviceID string) string {
	return deviceID + "/availability"
}

// ValidateTopic rejects topics a publisher may not use: empty, wildcards or
// NUL characters.
func ValidateTopic(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if strings.ContainsAny(topic, "+#\x00") {
		return fmt.Errorf("%w: %q contains a wildcard or NUL", ErrInvalidTopic, topic)
	}
	return nil
}
