package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-node/internal/param"
)

// Config is the root configuration structure for a Gray Logic node.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device       DeviceConfig       `yaml:"device"`
	Link         LinkConfig         `yaml:"link"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	Sequence     SequenceConfig     `yaml:"sequence"`
	Entities     EntitiesConfig     `yaml:"entities"`
	Announcement AnnouncementConfig `yaml:"announcement"`
	Persistence  PersistenceConfig  `yaml:"persistence"`
	Application  ApplicationConfig  `yaml:"application"`
	InfluxDB     InfluxDBConfig     `yaml:"influxdb"`
	Logging      LoggingConfig      `yaml:"logging"`
	Diagnostics  DiagnosticsConfig  `yaml:"diagnostics"`
	MDNS         MDNSConfig         `yaml:"mdns"`
}

// DeviceConfig identifies the node.
type DeviceConfig struct {
	// ID is the broker client identifier, hostname and topic prefix.
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// LinkConfig selects and configures the network link driver.
type LinkConfig struct {
	// Driver is "nmcli" (Wi-Fi via NetworkManager) or "static" (wired, no
	// attach step).
	Driver    string `yaml:"driver"`
	Interface string `yaml:"interface"`
	SSID      string `yaml:"ssid"`
	Password  string `yaml:"password"`

	// NMCLIBinary overrides the nmcli executable path.
	NMCLIBinary string `yaml:"nmcli_binary"`

	// AttachTimeout bounds one background nmcli connect.
	AttachTimeout time.Duration `yaml:"attach_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig `yaml:"broker"`
	Auth      MQTTAuthConfig   `yaml:"auth"`
	KeepAlive time.Duration    `yaml:"keep_alive"`

	// QoS is used for outbound entity values and subscriptions.
	QoS int `yaml:"qos"`

	// RetainState publishes entity values retained.
	RetainState bool `yaml:"retain_state"`

	// DiscoveryPrefix is the hub's discovery topic root.
	DiscoveryPrefix string `yaml:"discovery_prefix"`

	// InboundQueue is the capacity of the inbound message queue.
	InboundQueue int `yaml:"inbound_queue"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  bool   `yaml:"tls"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SequenceConfig tunes the communication sequence and main loop.
type SequenceConfig struct {
	FlushWindow     time.Duration `yaml:"flush_window"`
	LoopInterval    time.Duration `yaml:"loop_interval"`
	PumpDuration    time.Duration `yaml:"pump_duration"`
	HubOnlineEntity string        `yaml:"hub_online_entity"`
}

// EntitiesConfig locates the entity table.
type EntitiesConfig struct {
	// Table is a YAML or JSON(C) file with an "entities" list.
	Table string `yaml:"table"`

	// TopicIndex enables the topic lookup for inbound dispatch.
	TopicIndex bool `yaml:"topic_index"`
}

// AnnouncementConfig locates the discovery template.
type AnnouncementConfig struct {
	// Template is a JSON(C) file with the device block and static components.
	Template string `yaml:"template"`
}

// PersistenceConfig selects the preference store.
type PersistenceConfig struct {
	Backend     string        `yaml:"backend"`
	Path        string        `yaml:"path"`
	Namespace   string        `yaml:"namespace"`
	WALMode     bool          `yaml:"wal_mode"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// ApplicationConfig names the entities used by the node runtime. An empty
// name disables the feature.
type ApplicationConfig struct {
	HeartbeatEntity     string        `yaml:"heartbeat_entity"`
	HeartbeatInterval   time.Duration `yaml:"heartbeat_interval"`
	LogEntity           string        `yaml:"log_entity"`
	VersionEntity       string        `yaml:"version_entity"`
	AddressEntity       string        `yaml:"address_entity"`
	NetworkInfoEntity   string        `yaml:"network_info_entity"`
	NetworkInfoInterval time.Duration `yaml:"network_info_interval"`
	UpdateEntity        string        `yaml:"update_entity"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DiagnosticsConfig contains the local HTTP status server settings.
type DiagnosticsConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// MDNSConfig contains service advertisement settings.
type MDNSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Service string `yaml:"service"`
	Domain  string `yaml:"domain"`
	Port    int    `yaml:"port"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_NODE_SECTION_KEY
// For example: GRAYLOGIC_NODE_MQTT_HOST, GRAYLOGIC_NODE_WIFI_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:   "graylogic-node",
			Name: "Gray Logic Node",
		},
		Link: LinkConfig{
			Driver:        "nmcli",
			Interface:     "wlan0",
			AttachTimeout: 30 * time.Second,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			KeepAlive:       20 * time.Second,
			QoS:             1,
			DiscoveryPrefix: "homeassistant",
			InboundQueue:    256,
		},
		Sequence: SequenceConfig{
			FlushWindow:  3 * time.Second,
			LoopInterval: 10 * time.Millisecond,
			PumpDuration: 200 * time.Millisecond,
		},
		Entities: EntitiesConfig{
			Table:      "./configs/entities.yaml",
			TopicIndex: true,
		},
		Persistence: PersistenceConfig{
			Backend:     "sqlite",
			Path:        "./data/prefs.db",
			Namespace:   "Pref",
			WALMode:     true,
			BusyTimeout: 5 * time.Second,
		},
		Application: ApplicationConfig{
			HeartbeatInterval:   60 * time.Second,
			NetworkInfoInterval: 120 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Diagnostics: DiagnosticsConfig{
			Host:         "127.0.0.1",
			Port:         8090,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		MDNS: MDNSConfig{
			Service: "_graylogic-node._tcp",
			Domain:  "local.",
			Port:    8090,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_NODE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("GRAYLOGIC_NODE_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	// Link
	if v := os.Getenv("GRAYLOGIC_NODE_WIFI_SSID"); v != "" {
		cfg.Link.SSID = v
	}
	if v := os.Getenv("GRAYLOGIC_NODE_WIFI_PASSWORD"); v != "" {
		cfg.Link.Password = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_NODE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_NODE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("GRAYLOGIC_NODE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_NODE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Persistence
	if v := os.Getenv("GRAYLOGIC_NODE_PERSISTENCE_PATH"); v != "" {
		cfg.Persistence.Path = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_NODE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("GRAYLOGIC_NODE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	} else if strings.ContainsAny(c.Device.ID, "/+# ") {
		errs = append(errs, "device.id must not contain '/', '+', '#' or spaces")
	}

	switch c.Link.Driver {
	case "nmcli":
		if c.Link.SSID == "" {
			errs = append(errs, "link.ssid is required for the nmcli driver (set GRAYLOGIC_NODE_WIFI_SSID)")
		}
	case "static":
	default:
		errs = append(errs, "link.driver must be \"nmcli\" or \"static\"")
	}

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.DiscoveryPrefix == "" {
		errs = append(errs, "mqtt.discovery_prefix is required")
	}
	if c.MQTT.InboundQueue < 1 {
		errs = append(errs, "mqtt.inbound_queue must be positive")
	}

	if c.Sequence.LoopInterval <= 0 {
		errs = append(errs, "sequence.loop_interval must be positive")
	}
	if c.Sequence.FlushWindow < 0 {
		errs = append(errs, "sequence.flush_window must not be negative")
	}

	if c.Entities.Table == "" {
		errs = append(errs, "entities.table is required")
	}

	switch c.Persistence.Backend {
	case "sqlite", "bolt":
		if c.Persistence.Path == "" {
			errs = append(errs, "persistence.path is required for the "+c.Persistence.Backend+" backend")
		}
	case "memory":
	default:
		errs = append(errs, "persistence.backend must be \"sqlite\", \"bolt\" or \"memory\"")
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		errs = append(errs, "logging.format must be \"json\" or \"text\"")
	}

	if c.Diagnostics.Enabled && (c.Diagnostics.Port < 1 || c.Diagnostics.Port > 65535) {
		errs = append(errs, "diagnostics.port must be between 1 and 65535")
	}
	if c.MDNS.Enabled && c.MDNS.Service == "" {
		errs = append(errs, "mdns.service is required when mdns is enabled")
	}
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Params returns the parameter view consumed by the link and session guards.
func (c *Config) Params() *param.Map {
	return param.NewMap(map[string]string{
		param.KeyWiFiSSID:      c.Link.SSID,
		param.KeyWiFiPass:      c.Link.Password,
		param.KeyDeviceID:      c.Device.ID,
		param.KeyMQTTHost:      c.MQTT.Broker.Host,
		param.KeyMQTTPort:      strconv.Itoa(c.MQTT.Broker.Port),
		param.KeyMQTTUser:      c.MQTT.Auth.Username,
		param.KeyMQTTPass:      c.MQTT.Auth.Password,
		param.KeyMQTTKeepAlive: strconv.Itoa(int(c.MQTT.KeepAlive / time.Second)),
		param.KeyAliveInterval: strconv.FormatInt(c.Application.HeartbeatInterval.Milliseconds(), 10),
		param.KeyFlushWindow:   strconv.FormatInt(c.Sequence.FlushWindow.Milliseconds(), 10),
	})
}
