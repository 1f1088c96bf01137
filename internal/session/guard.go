package session

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/backoff"
	"github.com/nerrad567/gray-logic-node/internal/clock"
	"github.com/nerrad567/gray-logic-node/internal/param"
)

// Session defaults.
const (
	defaultKeepAlive = 20 * time.Second
	defaultPort      = 1883
)

// Phase is the Guard's coarse state.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseIdle
	PhaseAttaching
	PhaseAttached
)

// String returns the phase name used in logs and status output.
func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseIdle:
		return "idle"
	case PhaseAttaching:
		return "attaching"
	case PhaseAttached:
		return "attached"
	default:
		return "unknown"
	}
}

// State is a snapshot of the Guard's bookkeeping.
type State struct {
	Phase       Phase
	Configured  bool
	Attempts    int
	NextDelay   time.Duration
	LastAttempt time.Time
	Epoch       uint64
}

// LinkStatus is the view of the link guard the session depends on.
type LinkStatus interface {
	Attached() bool
}

// Logger is the logging interface used by the Guard.
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

// Option configures a Guard.
type Option func(*Guard)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(g *Guard) { g.clock = c }
}

// WithJitter replaces the backoff jitter source.
func WithJitter(j backoff.Jitter) Option {
	return func(g *Guard) { g.jitter = j }
}

// WithPolicy replaces the backoff schedule.
func WithPolicy(p backoff.Policy) Option {
	return func(g *Guard) { g.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(g *Guard) { g.logger = l }
}

// WithTLS makes the session use TLS.
func WithTLS(enabled bool) Option {
	return func(g *Guard) { g.tls = enabled }
}

// WithAvailability sets the birth and last-will topic.
func WithAvailability(a Availability) Option {
	return func(g *Guard) { g.availability = a }
}

// Guard owns the broker session state machine.
type Guard struct {
	transport    Transport
	link         LinkStatus
	params       param.Source
	clock        clock.Clock
	jitter       backoff.Jitter
	policy       backoff.Policy
	logger       Logger
	tls          bool
	availability Availability

	state         State
	pending       Attempt
	wasConnected  bool
	justConnected bool
	listener      *Listener
}

// NewGuard creates a Guard. Broker address, port and credentials are read
// from params (mqtt_ip, mqtt_port, mqtt_user, mqtt_pass, mqtt_keepalive_s);
// device_id is the client identifier.
func NewGuard(transport Transport, link LinkStatus, params param.Source, opts ...Option) *Guard {
	g := &Guard{
		transport: transport,
		link:      link,
		params:    params,
		clock:     clock.Real{},
		jitter:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		policy:    backoff.Default,
		logger:    noopLogger{},
	}
	for _, opt := range opts {
		opt(g)
	}
	g.state.NextDelay = g.policy.Base
	return g
}

// Poll advances the session state machine by one pass and reports whether
// a session is attached.
func (g *Guard) Poll() bool {
	if !g.link.Attached() {
		if g.wasConnected {
			g.logger.Warn("session lost with link")
			g.markLost()
		}
		if g.state.Configured {
			g.state.Phase = PhaseIdle
		}
		return false
	}

	if !g.state.Configured {
		if err := g.configure(); err != nil {
			g.logger.Error("session configuration failed", "error", err)
			return false
		}
	}

	if g.transport.IsConnected() {
		if !g.wasConnected {
			g.attached("observed")
		}
		return true
	}

	if g.wasConnected {
		g.logger.Warn("session lost", "broker", g.broker())
		g.markLost()
	}

	if g.pending != nil {
		if !g.pending.Done() {
			return false
		}
		attempt := g.pending
		g.pending = nil
		g.settle(attempt)
		return false
	}

	now := g.clock.Now()
	if now.Sub(g.state.LastAttempt) < g.state.NextDelay {
		return false
	}

	g.state.Phase = PhaseAttaching
	g.state.LastAttempt = now
	attempt := g.transport.Connect(Credentials{
		ClientID: g.params.Param(param.KeyDeviceID),
		Username: g.params.Param(param.KeyMQTTUser),
		Password: g.params.Param(param.KeyMQTTPass),
	})
	if !attempt.Done() {
		g.pending = attempt
		return false
	}
	g.settle(attempt)
	return false
}

// configure applies the one-shot session options.
func (g *Guard) configure() error {
	host := g.params.Param(param.KeyMQTTHost)
	if host == "" {
		return ErrNoBroker
	}

	opts := Options{
		Host:         host,
		Port:         param.IntOr(g.params, param.KeyMQTTPort, defaultPort),
		TLS:          g.tls,
		KeepAlive:    param.DurationOr(g.params, param.KeyMQTTKeepAlive, time.Second, defaultKeepAlive),
		CleanSession: true,
		Availability: g.availability,
	}
	if err := g.transport.Configure(opts); err != nil {
		return fmt.Errorf("configuring transport: %w", err)
	}

	g.state.Configured = true
	g.state.Phase = PhaseIdle
	g.logger.Info("session configured",
		"broker", g.broker(),
		"keep_alive", opts.KeepAlive.String(),
	)
	return nil
}

// settle records the outcome of a completed connect attempt.
func (g *Guard) settle(attempt Attempt) {
	if err := attempt.Err(); err != nil || !g.transport.IsConnected() {
		g.state.Attempts++
		g.state.NextDelay = g.policy.Delay(g.state.Attempts, g.jitter)
		g.state.Phase = PhaseIdle
		g.logger.Warn("session attach failed",
			"broker", g.broker(),
			"attempt", g.state.Attempts,
			"backoff_ms", g.state.NextDelay.Milliseconds(),
			"error", err,
		)
		return
	}
	g.attached("connect")
}

func (g *Guard) attached(via string) {
	g.pending = nil
	g.wasConnected = true
	g.justConnected = true
	g.state.Epoch++
	g.state.Phase = PhaseAttached
	g.logger.Info("session attached",
		"broker", g.broker(),
		"attempts", g.state.Attempts,
		"via", via,
	)
	g.state.Attempts = 0
	g.state.NextDelay = g.policy.Base
}

func (g *Guard) markLost() {
	g.wasConnected = false
	g.listener = nil
	g.pending = nil
	g.state.Phase = PhaseIdle
}

func (g *Guard) broker() string {
	return fmt.Sprintf("%s:%d", g.params.Param(param.KeyMQTTHost),
		param.IntOr(g.params, param.KeyMQTTPort, defaultPort))
}

// JustConnected reports, once, that a new session was established since
// the previous call.
func (g *Guard) JustConnected() bool {
	jc := g.justConnected
	g.justConnected = false
	return jc
}

// Attached reports whether the session is currently up.
func (g *Guard) Attached() bool {
	return g.wasConnected && g.transport.IsConnected()
}

// Disconnect tears the session down without touching the link.
func (g *Guard) Disconnect() {
	if g.wasConnected {
		g.logger.Info("session disconnect requested", "broker", g.broker())
	}
	g.transport.Disconnect()
	g.markLost()
	g.justConnected = false
}

// Publish sends payload to topic on the current session.
func (g *Guard) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if !g.Attached() {
		return ErrNotConnected
	}
	attempt := g.transport.Publish(topic, payload, qos, retained)
	if attempt.Done() {
		return attempt.Err()
	}
	return nil
}

// Pump waits up to d for queued publishes to be acknowledged, then delivers
// any inbound messages.
func (g *Guard) Pump(d time.Duration) int {
	if g.Attached() {
		g.transport.Flush(d)
	}
	return g.Deliver()
}

// State returns a copy of the Guard's bookkeeping.
func (g *Guard) State() State {
	return g.state
}
