package link

import (
	"math/rand/v2"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/backoff"
	"github.com/nerrad567/gray-logic-node/internal/clock"
	"github.com/nerrad567/gray-logic-node/internal/param"
)

// Guard timing.
const (
	// scanAfter is the number of consecutive failures that triggers a scan.
	scanAfter = 5

	// scanCooldown separates two scans and holds off attempts when the
	// target was not found.
	scanCooldown = 30 * time.Second

	// inFlightGate is the minimum spacing between attempts while one is pending.
	inFlightGate = 8 * time.Second

	// resetInterval is the minimum spacing between driver resets.
	resetInterval = 5 * time.Second
)

// Phase is the Guard's coarse state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseAttaching
	PhaseAttached
)

// String returns the phase name used in logs and status output.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScanning:
		return "scanning"
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
	Phase         Phase
	Attempts      int
	NextDelay     time.Duration
	LastAttempt   time.Time
	LastReset     time.Time
	LastScan      time.Time
	TargetVisible bool
	InFlight      bool
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

// Guard owns the radio link state machine.
type Guard struct {
	radio  Radio
	params param.Source
	clock  clock.Clock
	jitter backoff.Jitter
	policy backoff.Policy
	logger Logger

	state    State
	attached bool
}

// NewGuard creates a Guard driving radio with credentials read from params
// (wifi_ssid, wifi_pass) and the hostname taken from device_id.
func NewGuard(radio Radio, params param.Source, opts ...Option) *Guard {
	g := &Guard{
		radio:  radio,
		params: params,
		clock:  clock.Real{},
		jitter: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		policy: backoff.Default,
		logger: noopLogger{},
	}
	for _, opt := range opts {
		opt(g)
	}
	g.state.TargetVisible = true
	g.state.NextDelay = g.policy.Base
	return g
}

// Poll advances the state machine by one pass and reports whether the link
// is attached. It never waits on the radio.
func (g *Guard) Poll() bool {
	now := g.clock.Now()
	status := g.radio.Status()

	if status == StatusConnected {
		if !g.attached {
			g.logger.Info("link attached",
				"ssid", g.params.Param(param.KeyWiFiSSID),
				"attempts", g.state.Attempts,
			)
		}
		g.attached = true
		g.state.Phase = PhaseAttached
		g.state.Attempts = 0
		g.state.NextDelay = g.policy.Base
		g.state.InFlight = false
		return true
	}

	if g.attached {
		g.logger.Warn("link lost", "status", status.String(), "hint", status.hint())
		g.attached = false
		g.state.Phase = PhaseIdle
		g.state.InFlight = false
	}

	ssid := g.params.Param(param.KeyWiFiSSID)

	if !g.state.TargetVisible && now.Sub(g.state.LastScan) < scanCooldown {
		return false
	}

	if g.state.Attempts >= scanAfter && now.Sub(g.state.LastScan) > scanCooldown {
		if !g.scan(now, ssid) {
			return false
		}
	}

	if g.state.InFlight && now.Sub(g.state.LastAttempt) < inFlightGate {
		return false
	}
	if now.Sub(g.state.LastAttempt) < g.state.NextDelay {
		return false
	}

	g.attempt(now, ssid, status)
	return false
}

// scan looks for ssid and reports whether attempts may continue.
func (g *Guard) scan(now time.Time, ssid string) bool {
	g.state.Phase = PhaseScanning
	g.state.LastScan = now
	g.state.TargetVisible = false

	networks, err := g.radio.Scan()
	if err != nil {
		g.logger.Warn("link scan failed", "ssid", ssid, "error", err)
	}
	for _, n := range networks {
		if n.SSID == ssid {
			g.state.TargetVisible = true
			break
		}
	}

	if !g.state.TargetVisible {
		g.logger.Warn("link target not found by scan",
			"ssid", ssid,
			"visible_networks", len(networks),
			"retry_in", scanCooldown.String(),
		)
		return false
	}

	g.logger.Info("link target visible, restarting attempts",
		"ssid", ssid,
		"failed_attempts", g.state.Attempts,
	)
	g.state.Attempts = 0
	g.state.Phase = PhaseIdle
	return true
}

// attempt resets the driver if due and issues one attach request.
func (g *Guard) attempt(now time.Time, ssid string, status Status) {
	if now.Sub(g.state.LastReset) > resetInterval {
		if err := g.radio.Reset(g.params.Param(param.KeyDeviceID)); err != nil {
			g.logger.Warn("link radio reset failed", "error", err)
		}
		g.state.LastReset = now
	}

	if err := g.radio.Begin(ssid, g.params.Param(param.KeyWiFiPass)); err != nil {
		g.logger.Warn("link attach request failed", "ssid", ssid, "error", err)
	}

	g.state.Phase = PhaseAttaching
	g.state.InFlight = true
	g.state.Attempts++
	g.state.NextDelay = g.policy.Delay(g.state.Attempts, g.jitter)
	g.state.LastAttempt = now

	g.logger.Info("link attach attempt",
		"ssid", ssid,
		"attempt", g.state.Attempts,
		"backoff_ms", g.state.NextDelay.Milliseconds(),
		"status", status.String(),
		"hint", status.hint(),
	)
}

// Attached reports the result of the most recent Poll.
func (g *Guard) Attached() bool {
	return g.attached
}

// State returns a copy of the Guard's bookkeeping.
func (g *Guard) State() State {
	return g.state
}

// Radio returns the driven radio.
func (g *Guard) Radio() Radio {
	return g.radio
}
