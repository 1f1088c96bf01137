package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/param"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
device:
  id: "virgo"
link:
  driver: nmcli
  interface: wlan1
  ssid: "workshop"
  password: "secret"
mqtt:
  broker:
    host: "192.0.2.5"
    port: 1884
  keep_alive: 30s
  qos: 0
  retain_state: true
sequence:
  flush_window: 2500ms
  hub_online_entity: IotBridge_HA_online
entities:
  table: /etc/graylogic-node/entities.yaml
persistence:
  backend: bolt
  path: /var/lib/graylogic-node/prefs.bolt
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.ID != "virgo" {
		t.Errorf("Device.ID = %q, want %q", cfg.Device.ID, "virgo")
	}
	if cfg.Link.Interface != "wlan1" || cfg.Link.SSID != "workshop" {
		t.Errorf("Link = %+v", cfg.Link)
	}
	if cfg.MQTT.Broker.Port != 1884 || cfg.MQTT.KeepAlive != 30*time.Second {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	if cfg.Sequence.FlushWindow != 2500*time.Millisecond {
		t.Errorf("FlushWindow = %v", cfg.Sequence.FlushWindow)
	}
	if cfg.Persistence.Backend != "bolt" {
		t.Errorf("Persistence.Backend = %q", cfg.Persistence.Backend)
	}

	// Defaults survive for omitted keys.
	if cfg.MQTT.DiscoveryPrefix != "homeassistant" {
		t.Errorf("DiscoveryPrefix = %q, want default", cfg.MQTT.DiscoveryPrefix)
	}
	if cfg.Sequence.LoopInterval != 10*time.Millisecond {
		t.Errorf("LoopInterval = %v, want default", cfg.Sequence.LoopInterval)
	}
	if cfg.Persistence.Namespace != "Pref" {
		t.Errorf("Namespace = %q, want Pref", cfg.Persistence.Namespace)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
link:
  ssid: "from-file"
mqtt:
  broker:
    host: "file-host"
`)
	t.Setenv("GRAYLOGIC_NODE_DEVICE_ID", "env-node")
	t.Setenv("GRAYLOGIC_NODE_WIFI_SSID", "env-ssid")
	t.Setenv("GRAYLOGIC_NODE_WIFI_PASSWORD", "env-pass")
	t.Setenv("GRAYLOGIC_NODE_MQTT_HOST", "env-host")
	t.Setenv("GRAYLOGIC_NODE_MQTT_PORT", "8883")
	t.Setenv("GRAYLOGIC_NODE_MQTT_USERNAME", "env-user")
	t.Setenv("GRAYLOGIC_NODE_MQTT_PASSWORD", "env-mqtt-pass")
	t.Setenv("GRAYLOGIC_NODE_PERSISTENCE_PATH", "/tmp/env.db")
	t.Setenv("GRAYLOGIC_NODE_INFLUXDB_TOKEN", "tok")
	t.Setenv("GRAYLOGIC_NODE_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"device id", cfg.Device.ID, "env-node"},
		{"ssid", cfg.Link.SSID, "env-ssid"},
		{"wifi password", cfg.Link.Password, "env-pass"},
		{"mqtt host", cfg.MQTT.Broker.Host, "env-host"},
		{"mqtt user", cfg.MQTT.Auth.Username, "env-user"},
		{"mqtt password", cfg.MQTT.Auth.Password, "env-mqtt-pass"},
		{"persistence path", cfg.Persistence.Path, "/tmp/env.db"},
		{"influx token", cfg.InfluxDB.Token, "tok"},
		{"log level", cfg.Logging.Level, "debug"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("mqtt port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Link.SSID = "workshop"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults with ssid", func(*Config) {}, ""},
		{"static link needs no ssid", func(c *Config) { c.Link.Driver = "static"; c.Link.SSID = "" }, ""},
		{"missing device id", func(c *Config) { c.Device.ID = "" }, "device.id is required"},
		{"wildcard in device id", func(c *Config) { c.Device.ID = "node/+" }, "device.id must not contain"},
		{"unknown driver", func(c *Config) { c.Link.Driver = "ppp" }, "link.driver"},
		{"nmcli without ssid", func(c *Config) { c.Link.SSID = "" }, "link.ssid is required"},
		{"missing broker", func(c *Config) { c.MQTT.Broker.Host = "" }, "mqtt.broker.host"},
		{"bad port", func(c *Config) { c.MQTT.Broker.Port = 70000 }, "mqtt.broker.port"},
		{"bad qos", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"empty prefix", func(c *Config) { c.MQTT.DiscoveryPrefix = "" }, "mqtt.discovery_prefix"},
		{"zero queue", func(c *Config) { c.MQTT.InboundQueue = 0 }, "mqtt.inbound_queue"},
		{"zero loop", func(c *Config) { c.Sequence.LoopInterval = 0 }, "sequence.loop_interval"},
		{"negative flush", func(c *Config) { c.Sequence.FlushWindow = -time.Second }, "sequence.flush_window"},
		{"no table", func(c *Config) { c.Entities.Table = "" }, "entities.table"},
		{"unknown backend", func(c *Config) { c.Persistence.Backend = "redis" }, "persistence.backend"},
		{"sqlite without path", func(c *Config) { c.Persistence.Path = "" }, "persistence.path"},
		{"memory without path", func(c *Config) { c.Persistence.Backend = "memory"; c.Persistence.Path = "" }, ""},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"diagnostics port", func(c *Config) { c.Diagnostics.Enabled = true; c.Diagnostics.Port = 0 }, "diagnostics.port"},
		{"mdns service", func(c *Config) { c.MDNS.Enabled = true; c.MDNS.Service = "" }, "mdns.service"},
		{"influx url", func(c *Config) { c.InfluxDB.Enabled = true }, "influxdb.url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Device.ID = ""
	cfg.MQTT.QoS = 9

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil")
	}
	for _, want := range []string{"device.id", "link.ssid", "mqtt.qos"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestParams(t *testing.T) {
	cfg := defaultConfig()
	cfg.Device.ID = "virgo"
	cfg.Link.SSID = "workshop"
	cfg.Link.Password = "pw"
	cfg.MQTT.Auth.Username = "node"
	cfg.Application.HeartbeatInterval = 90 * time.Second

	p := cfg.Params()

	tests := []struct {
		key  string
		want string
	}{
		{param.KeyDeviceID, "virgo"},
		{param.KeyWiFiSSID, "workshop"},
		{param.KeyWiFiPass, "pw"},
		{param.KeyMQTTHost, "localhost"},
		{param.KeyMQTTPort, "1883"},
		{param.KeyMQTTUser, "node"},
		{param.KeyMQTTKeepAlive, "20"},
		{param.KeyAliveInterval, "90000"},
		{param.KeyFlushWindow, "3000"},
	}
	for _, tt := range tests {
		if got := p.Param(tt.key); got != tt.want {
			t.Errorf("Param(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
