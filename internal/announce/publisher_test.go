package announce

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-node/internal/entity"
)

const validPayload = `{
  "device": {"identifiers": "Virgo", "name": "Virgo"},
  "o": {"name": "Virgo"},
  "cmps": {"ip": {"p": "sensor", "stat_t": "Virgo/ip/toHA"}}
}`

type fakeSession struct {
	attached bool
	err      error
	sent     []sentMessage
}

type sentMessage struct {
	topic    string
	payload  string
	qos      byte
	retained bool
}

func (s *fakeSession) Attached() bool { return s.attached }

func (s *fakeSession) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{topic, string(payload), qos, retained})
	return nil
}

func newTestPublisher(t *testing.T, s *fakeSession) *Publisher {
	t.Helper()
	p, err := NewPublisher(s, "homeassistant/device/virgo/config", nil)
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	return p
}

func TestPublish_RetainedAtLeastOnce(t *testing.T) {
	s := &fakeSession{attached: true}
	p := newTestPublisher(t, s)
	p.LoadPayload([]byte(validPayload))

	if !p.Publish() {
		t.Fatalf("Publish() = false, err = %v", p.LastErr())
	}
	if len(s.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(s.sent))
	}
	got := s.sent[0]
	if got.topic != "homeassistant/device/virgo/config" || got.qos != 1 || !got.retained {
		t.Errorf("sent %+v", got)
	}
	if p.Published() != 1 || p.LastErr() != nil {
		t.Errorf("Published() = %d, LastErr() = %v", p.Published(), p.LastErr())
	}
}

func TestPublish_NoOpWithoutSessionOrPayload(t *testing.T) {
	s := &fakeSession{attached: false}
	p := newTestPublisher(t, s)
	p.LoadPayload([]byte(validPayload))

	if p.Publish() || !errors.Is(p.LastErr(), ErrNotAttached) {
		t.Errorf("detached Publish() err = %v", p.LastErr())
	}

	s.attached = true
	empty := newTestPublisher(t, s)
	if empty.Publish() || !errors.Is(empty.LastErr(), ErrNoPayload) {
		t.Errorf("empty Publish() err = %v", empty.LastErr())
	}
	if len(s.sent) != 0 {
		t.Error("no-op publish sent a message")
	}
}

func TestPublish_RejectsInvalidPayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{"syntax", `{"device": {"name": "x"}, "cmps": {`, ErrMalformedPayload},
		{"not json", `device=x`, ErrMalformedPayload},
		{"missing device", `{"cmps": {"ip": {"p": "sensor"}}}`, ErrIncompletePayload},
		{"device not an object", `{"device": "x", "cmps": {"ip": {"p": "sensor"}}}`, ErrIncompletePayload},
		{"missing cmps", `{"device": {"name": "x"}}`, ErrIncompletePayload},
		{"empty cmps", `{"device": {"name": "x"}, "cmps": {}}`, ErrIncompletePayload},
		{"cmps not an object", `{"device": {"name": "x"}, "cmps": ["ip"]}`, ErrIncompletePayload},
		{"array root", `[1, 2]`, ErrIncompletePayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSession{attached: true}
			p := newTestPublisher(t, s)
			p.LoadPayload([]byte(tt.payload))

			if p.Publish() {
				t.Fatal("Publish() = true for invalid payload")
			}
			if !errors.Is(p.LastErr(), tt.want) {
				t.Errorf("LastErr() = %v, want %v", p.LastErr(), tt.want)
			}
			if len(s.sent) != 0 {
				t.Error("invalid payload was sent")
			}
		})
	}
}

func TestPublish_AcceptsMinimalStructure(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"empty device", `{"device": {}, "cmps": {"ip": {"p": "sensor"}}}`},
		{"component without platform", `{"device": {"name": "x"}, "cmps": {"ip": {"name": "ip"}}}`},
		{"extra top-level keys", `{"device": {"ids": "x"}, "cmps": {"ip": {}}, "qos": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSession{attached: true}
			p := newTestPublisher(t, s)
			p.LoadPayload([]byte(tt.payload))

			if !p.Publish() {
				t.Fatalf("Publish() = false, LastErr() = %v", p.LastErr())
			}
			if len(s.sent) != 1 {
				t.Errorf("sent %d messages, want 1", len(s.sent))
			}
		})
	}
}

func TestPublish_SessionError(t *testing.T) {
	s := &fakeSession{attached: true, err: errors.New("write timeout")}
	p := newTestPublisher(t, s)
	p.LoadPayload([]byte(validPayload))

	if p.Publish() {
		t.Error("Publish() = true despite session error")
	}
	if p.LastErr() == nil || p.Published() != 0 {
		t.Errorf("LastErr() = %v, Published() = %d", p.LastErr(), p.Published())
	}
}

func TestLoadPayload_Copies(t *testing.T) {
	s := &fakeSession{attached: true}
	p := newTestPublisher(t, s)
	buf := []byte(validPayload)
	p.LoadPayload(buf)
	buf[0] = 'x'

	if !p.Publish() {
		t.Errorf("payload aliased caller buffer: %v", p.LastErr())
	}
}

func TestBuild_MergesEntityComponents(t *testing.T) {
	reg := entity.NewRegistry(nil)
	specs := []entity.Spec{
		{Name: "online", Behavior: entity.Internal, In: "HA/online",
			Component: map[string]any{"p": "binary_sensor"}},
		{Name: "ip", Behavior: entity.Indicator, Out: "Virgo/ip/toHA",
			Component: map[string]any{"p": "sensor"}},
		{Name: "IotBridge_OTA", Behavior: entity.Trigger, Out: "Virgo/OTA/toHA", In: "Virgo/OTA/fromHA",
			Component: map[string]any{"p": "button", "key": "OTA", "unique_id": "Virgo_OTA2"}},
		{Name: "bare", Behavior: entity.Control, Out: "bare/out"},
	}
	for _, s := range specs {
		if _, err := reg.Register(s); err != nil {
			t.Fatal(err)
		}
	}

	template := []byte(`{
  // static device block
  "device": {"identifiers": "Virgo", "name": "Virgo"},
  "cmps": {"log": {"p": "sensor", "stat_t": "Virgo/log/toHA"}},
}`)

	out, err := Build(template, reg.Entities(), BuildOptions{DeviceID: "Virgo", AvailabilityTopic: "Virgo/availability"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	v, _ := NewValidator()
	if err := v.Validate(out); err != nil {
		t.Fatalf("built payload invalid: %v", err)
	}

	var doc struct {
		Cmps map[string]map[string]any `json:"cmps"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatal(err)
	}
	if _, ok := doc.Cmps["online"]; ok {
		t.Error("internal entity was announced")
	}
	if _, ok := doc.Cmps["bare"]; ok {
		t.Error("entity without component was announced")
	}
	if _, ok := doc.Cmps["log"]; !ok {
		t.Error("template component lost")
	}

	ip := doc.Cmps["ip"]
	if ip["stat_t"] != "Virgo/ip/toHA" || ip["unique_id"] != "Virgo_ip" {
		t.Errorf("ip component = %v", ip)
	}
	if _, ok := ip["cmd_t"]; ok {
		t.Error("cmd_t set for entity without inbound topic")
	}

	ota := doc.Cmps["OTA"]
	if ota == nil {
		t.Fatalf("OTA component missing: %v", doc.Cmps)
	}
	if ota["cmd_t"] != "Virgo/OTA/fromHA" || ota["unique_id"] != "Virgo_OTA2" {
		t.Errorf("OTA component = %v", ota)
	}
	if _, ok := ota["key"]; ok {
		t.Error("key field leaked into component")
	}
	if avail, ok := ota["availability"].([]any); !ok || len(avail) != 1 {
		t.Errorf("availability = %v", ota["availability"])
	}
}

func TestBuild_MalformedTemplate(t *testing.T) {
	if _, err := Build([]byte(`{"device":`), nil, BuildOptions{}); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("Build() = %v, want ErrMalformedPayload", err)
	}
}
