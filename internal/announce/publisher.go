package announce

import (
	"fmt"
)

// qosAtLeastOnce is the lowest QoS that guarantees delivery.
const qosAtLeastOnce = 1

// Session is the broker session the payload is published through.
type Session interface {
	Attached() bool
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger is the logging interface used by the Publisher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Publisher sends the announcement payload once per call to Publish.
// It does not retry; the caller decides when to call it again.
type Publisher struct {
	session   Session
	topic     string
	validator *Validator
	logger    Logger

	payload   []byte
	lastErr   error
	published int
}

// NewPublisher creates a Publisher for the given config topic.
//
// Parameters:
//   - session: Broker session used for the publish
//   - topic: Full config topic, see mqtt.Topics.DeviceConfig
//   - logger: Optional logger; nil disables logging
//
// Returns:
//   - *Publisher: Ready publisher with no payload loaded
//   - error: If the embedded schema fails to compile
func NewPublisher(session Session, topic string, logger Logger) (*Publisher, error) {
	v, err := NewValidator()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Publisher{session: session, topic: topic, validator: v, logger: logger}, nil
}

// LoadPayload stores the payload to publish. It is validated at publish
// time, not here.
func (p *Publisher) LoadPayload(payload []byte) {
	p.payload = append([]byte(nil), payload...)
}

// Loaded reports whether a payload has been supplied.
func (p *Publisher) Loaded() bool { return len(p.payload) > 0 }

// Topic returns the config topic.
func (p *Publisher) Topic() string { return p.topic }

// Publish validates and publishes the payload. It returns false without
// side effects when the session is down or no payload is loaded. Validation
// failures are logged, recorded in LastErr and return false.
func (p *Publisher) Publish() bool {
	if !p.session.Attached() {
		p.lastErr = ErrNotAttached
		return false
	}
	if !p.Loaded() {
		p.lastErr = ErrNoPayload
		return false
	}

	if err := p.validator.Validate(p.payload); err != nil {
		p.lastErr = err
		p.logger.Error("announcement rejected", "topic", p.topic, "error", err)
		return false
	}

	if err := p.session.Publish(p.topic, p.payload, qosAtLeastOnce, true); err != nil {
		p.lastErr = fmt.Errorf("publishing announcement: %w", err)
		p.logger.Warn("announcement publish failed", "topic", p.topic, "error", err)
		return false
	}

	p.lastErr = nil
	p.published++
	p.logger.Info("announcement published", "topic", p.topic, "bytes", len(p.payload))
	return true
}

// LastErr returns the outcome of the last Publish call.
func (p *Publisher) LastErr() error { return p.lastErr }

// Published returns how many times the payload was sent.
func (p *Publisher) Published() int { return p.published }
