package mqtt

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-node/internal/session"
)

// defaultInboundQueue is the inbound buffer used when none is configured.
const defaultInboundQueue = 256

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Transport adapts paho.mqtt.golang to session.Transport.
//
// paho runs its network and callback goroutines; this type never calls back
// into the core. Received messages are copied into a bounded channel drained
// by the session guard on the loop goroutine, and every broker operation is
// returned as a non-blocking session.Attempt.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Transport struct {
	mu        sync.Mutex
	client    pahomqtt.Client
	options   *pahomqtt.ClientOptions
	settings  session.Options
	pending   []pahomqtt.Token
	inbound   chan session.Message
	dropped   atomic.Uint64
	logger    Logger
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client
}

// NewTransport creates a Transport with an inbound queue of queueSize
// messages (defaultInboundQueue when <= 0).
func NewTransport(queueSize int) *Transport {
	if queueSize <= 0 {
		queueSize = defaultInboundQueue
	}
	return &Transport{
		inbound:   make(chan session.Message, queueSize),
		logger:    noopLogger{},
		newClient: pahomqtt.NewClient,
	}
}

// SetLogger sets a logger for connection and queue diagnostics.
func (t *Transport) SetLogger(logger Logger) {
	t.mu.Lock()
	t.logger = logger
	t.mu.Unlock()
}

func (t *Transport) log() Logger {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.logger
}

// Configure implements session.Transport.
func (t *Transport) Configure(o session.Options) error {
	opts, err := buildClientOptions(o)
	if err != nil {
		return err
	}

	opts.SetDefaultPublishHandler(t.enqueue)
	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		t.announceOnline(c)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		t.log().Warn("mqtt connection lost", "error", err)
	})

	t.mu.Lock()
	t.options = opts
	t.settings = o
	t.mu.Unlock()
	return nil
}

// Connect implements session.Transport. A fresh paho client is built for
// every attempt so a half-open previous client can never interfere.
func (t *Transport) Connect(creds session.Credentials) session.Attempt {
	t.mu.Lock()
	if t.options == nil {
		t.mu.Unlock()
		return session.Failed(ErrNotConfigured)
	}
	old := t.client
	applyCredentials(t.options, creds)
	client := t.newClient(t.options)
	t.client = client
	t.pending = nil
	t.mu.Unlock()

	if old != nil && old.IsConnectionOpen() {
		old.Disconnect(0)
	}

	return tokenAttempt{token: client.Connect()}
}

// announceOnline publishes the retained online availability message.
func (t *Transport) announceOnline(c pahomqtt.Client) {
	t.mu.Lock()
	a := t.settings.Availability
	t.mu.Unlock()
	if a.Topic == "" {
		return
	}
	c.Publish(a.Topic, 1, true, a.Online)
}

// enqueue copies a paho message into the inbound queue. It runs on a paho
// goroutine and must not block.
func (t *Transport) enqueue(_ pahomqtt.Client, msg pahomqtt.Message) {
	defer func() {
		if r := recover(); r != nil {
			t.log().Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
		}
	}()

	payload := append([]byte(nil), msg.Payload()...)
	m := session.Message{Topic: msg.Topic(), Payload: payload, Retained: msg.Retained()}

	select {
	case t.inbound <- m:
	default:
		n := t.dropped.Add(1)
		t.log().Warn("inbound queue full, message dropped",
			"topic", m.Topic,
			"dropped_total", n,
		)
	}
}

// IsConnected implements session.Transport.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	c := t.client
	t.mu.Unlock()
	return c != nil && c.IsConnectionOpen()
}

// Disconnect implements session.Transport. A graceful offline message is
// published first, since the broker only sends the will on unclean loss.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	c := t.client
	a := t.settings.Availability
	t.client = nil
	t.pending = nil
	t.mu.Unlock()

	if c == nil {
		return
	}
	if c.IsConnectionOpen() {
		if a.Topic != "" {
			c.Publish(a.Topic, 1, true, a.Offline).WaitTimeout(time.Duration(defaultDisconnectQuiesce) * time.Millisecond)
		}
		c.Disconnect(defaultDisconnectQuiesce)
	}
}

// Subscribe implements session.Transport. Messages are routed through the
// default publish handler, so no per-topic callback is registered.
func (t *Transport) Subscribe(topic string, qos byte) session.Attempt {
	if topic == "" {
		return session.Failed(ErrInvalidTopic)
	}
	if qos > maxQoS {
		return session.Failed(ErrInvalidQoS)
	}

	t.mu.Lock()
	c := t.client
	t.mu.Unlock()
	if c == nil || !c.IsConnectionOpen() {
		return session.Failed(ErrNotConnected)
	}
	return tokenAttempt{token: c.Subscribe(topic, qos, nil)}
}

// Publish implements session.Transport.
func (t *Transport) Publish(topic string, payload []byte, qos byte, retained bool) session.Attempt {
	if topic == "" {
		return session.Failed(ErrInvalidTopic)
	}
	if qos > maxQoS {
		return session.Failed(ErrInvalidQoS)
	}
	if len(payload) > maxPayloadSize {
		return session.Failed(fmt.Errorf("%w: payload size %d exceeds maximum %d bytes",
			ErrPublishFailed, len(payload), maxPayloadSize))
	}

	t.mu.Lock()
	c := t.client
	t.mu.Unlock()
	if c == nil || !c.IsConnectionOpen() {
		return session.Failed(ErrNotConnected)
	}

	token := c.Publish(topic, qos, retained, payload)
	t.mu.Lock()
	t.pending = append(t.pending, token)
	t.mu.Unlock()
	return tokenAttempt{token: token}
}

// Inbound implements session.Transport.
func (t *Transport) Inbound() <-chan session.Message {
	return t.inbound
}

// Flush implements session.Transport. It waits up to d in total for
// outstanding publish tokens and forgets the ones that completed.
func (t *Transport) Flush(d time.Duration) {
	t.mu.Lock()
	tokens := t.pending
	t.pending = nil
	t.mu.Unlock()

	deadline := time.Now().Add(d)
	var unfinished []pahomqtt.Token
	for _, tok := range tokens {
		remaining := time.Until(deadline)
		if remaining <= 0 || !tok.WaitTimeout(remaining) {
			unfinished = append(unfinished, tok)
		}
	}

	if len(unfinished) > 0 {
		t.mu.Lock()
		t.pending = append(unfinished, t.pending...)
		t.mu.Unlock()
	}
}

// Dropped returns how many inbound messages were discarded on a full queue.
func (t *Transport) Dropped() uint64 {
	return t.dropped.Load()
}

// tokenAttempt exposes a paho token as a session.Attempt.
type tokenAttempt struct {
	token pahomqtt.Token
}

func (a tokenAttempt) Done() bool {
	select {
	case <-a.token.Done():
		return true
	default:
		return false
	}
}

func (a tokenAttempt) Err() error {
	return a.token.Error()
}
