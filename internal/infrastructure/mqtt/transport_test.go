package mqtt

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/session"
)

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic    string
	payload  []byte
	retained bool
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return m.retained }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type captureLogger struct {
	warns []string
}

func (l *captureLogger) Info(string, ...any)       {}
func (l *captureLogger) Warn(msg string, _ ...any) { l.warns = append(l.warns, msg) }
func (l *captureLogger) Error(string, ...any)      {}

func testOptions() session.Options {
	return session.Options{
		Host:         "127.0.0.1",
		Port:         1883,
		KeepAlive:    20 * time.Second,
		CleanSession: true,
		Availability: session.Availability{Topic: "node-01/availability", Online: "online", Offline: "offline"},
	}
}

func TestBuildClientOptions(t *testing.T) {
	opts, err := buildClientOptions(testOptions())
	if err != nil {
		t.Fatalf("buildClientOptions() error = %v", err)
	}

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.AutoReconnect || opts.ConnectRetry {
		t.Error("paho reconnection must be disabled")
	}
	if !opts.CleanSession {
		t.Error("CleanSession = false")
	}
	if opts.KeepAlive != 20 {
		t.Errorf("KeepAlive = %d, want 20", opts.KeepAlive)
	}
	if !opts.WillEnabled || opts.WillTopic != "node-01/availability" || string(opts.WillPayload) != "offline" {
		t.Errorf("will = %v %q %q", opts.WillEnabled, opts.WillTopic, opts.WillPayload)
	}
	if !opts.WillRetained || opts.WillQos != 1 {
		t.Error("will must be retained at QoS 1")
	}
}

func TestBuildClientOptions_TLSAndNoWill(t *testing.T) {
	o := testOptions()
	o.TLS = true
	o.Port = 8883
	o.Availability = session.Availability{}

	opts, err := buildClientOptions(o)
	if err != nil {
		t.Fatalf("buildClientOptions() error = %v", err)
	}
	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config missing or below minimum version")
	}
	if opts.WillEnabled {
		t.Error("will should be disabled without availability topic")
	}
}

func TestBuildClientOptions_InvalidBroker(t *testing.T) {
	tests := []session.Options{
		{Host: "", Port: 1883},
		{Host: "broker", Port: 0},
		{Host: "broker", Port: 70000},
	}
	for _, o := range tests {
		if _, err := buildClientOptions(o); !errors.Is(err, ErrInvalidBroker) {
			t.Errorf("buildClientOptions(%+v) error = %v, want ErrInvalidBroker", o, err)
		}
	}
}

func TestTransport_ConnectBeforeConfigure(t *testing.T) {
	tr := NewTransport(4)
	a := tr.Connect(session.Credentials{ClientID: "x"})
	if !a.Done() || !errors.Is(a.Err(), ErrNotConfigured) {
		t.Errorf("Connect() before Configure = %v", a.Err())
	}
	if tr.IsConnected() {
		t.Error("IsConnected() = true without client")
	}
}

func TestTransport_RejectsInvalidOperations(t *testing.T) {
	tr := NewTransport(4)

	tests := []struct {
		name    string
		attempt session.Attempt
		want    error
	}{
		{"publish empty topic", tr.Publish("", nil, 0, false), ErrInvalidTopic},
		{"publish bad qos", tr.Publish("a", nil, 3, false), ErrInvalidQoS},
		{"publish oversize", tr.Publish("a", make([]byte, maxPayloadSize+1), 0, false), ErrPublishFailed},
		{"publish disconnected", tr.Publish("a", []byte("x"), 0, false), ErrNotConnected},
		{"subscribe empty topic", tr.Subscribe("", 0), ErrInvalidTopic},
		{"subscribe bad qos", tr.Subscribe("a", 5), ErrInvalidQoS},
		{"subscribe disconnected", tr.Subscribe("a", 0), ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.attempt.Done() {
				t.Fatal("attempt should complete immediately")
			}
			if !errors.Is(tt.attempt.Err(), tt.want) {
				t.Errorf("Err() = %v, want %v", tt.attempt.Err(), tt.want)
			}
		})
	}
}

func TestTransport_EnqueueCopiesAndDropsWhenFull(t *testing.T) {
	tr := NewTransport(2)
	logger := &captureLogger{}
	tr.SetLogger(logger)

	payload := []byte("ON")
	tr.enqueue(nil, fakeMessage{topic: "a", payload: payload, retained: true})
	payload[0] = 'X'
	tr.enqueue(nil, fakeMessage{topic: "b", payload: []byte("2")})
	tr.enqueue(nil, fakeMessage{topic: "c", payload: []byte("3")})

	if got := tr.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
	if len(logger.warns) != 1 || !strings.Contains(logger.warns[0], "queue full") {
		t.Errorf("warnings = %v", logger.warns)
	}

	first := <-tr.Inbound()
	if first.Topic != "a" || string(first.Payload) != "ON" || !first.Retained {
		t.Errorf("first message = %+v", first)
	}
	second := <-tr.Inbound()
	if second.Topic != "b" {
		t.Errorf("second message topic = %q", second.Topic)
	}
}

func TestTransport_DisconnectWithoutClient(t *testing.T) {
	tr := NewTransport(0)
	tr.Disconnect()
	tr.Flush(time.Millisecond)
	if cap(tr.inbound) != defaultInboundQueue {
		t.Errorf("queue capacity = %d, want default", cap(tr.inbound))
	}
}

func TestTopics(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"default prefix", Topics{}.DeviceConfig("virgo-01"), "homeassistant/device/virgo-01/config"},
		{"custom prefix", Topics{Prefix: "ha/"}.DeviceConfig("n"), "ha/device/n/config"},
		{"hub status", Topics{}.HubStatus(), "homeassistant/status"},
		{"availability", Topics{}.Availability("virgo-01"), "virgo-01/availability"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestValidateTopic(t *testing.T) {
	if err := ValidateTopic("Virgo/ip/toHA"); err != nil {
		t.Errorf("ValidateTopic(valid) = %v", err)
	}
	for _, bad := range []string{"", "a/+/b", "a/#"} {
		if err := ValidateTopic(bad); !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("ValidateTopic(%q) = %v, want ErrInvalidTopic", bad, err)
		}
	}
}
