package comm

import (
	"time"

	"github.com/nerrad567/gray-logic-node/internal/announce"
	"github.com/nerrad567/gray-logic-node/internal/clock"
	"github.com/nerrad567/gray-logic-node/internal/entity"
	"github.com/nerrad567/gray-logic-node/internal/session"
)

// Defaults.
const (
	// DefaultFlushWindow is how long retained messages are held back after
	// subscribing.
	DefaultFlushWindow = 3 * time.Second

	// subscribeRetry spaces re-subscription after a failed SUBSCRIBE.
	subscribeRetry = time.Second
)

// Link is the radio link guard.
type Link interface {
	Poll() bool
}

// Logger is the logging interface used by the Orchestrator.
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

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithFlushWindow sets the retained-message flush window.
func WithFlushWindow(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.flushWindow = d
		}
	}
}

// WithHubOnlineEntity names the Internal entity reporting hub presence.
// Empty means the hub is assumed online whenever the session is up.
func WithHubOnlineEntity(name string) Option {
	return func(o *Orchestrator) { o.hubOnline = name }
}

// WithPublishQoS sets QoS and retain flag for outbound entity values.
func WithPublishQoS(qos byte, retained bool) Option {
	return func(o *Orchestrator) {
		o.publishQoS = qos
		o.retain = retained
	}
}

// WithSubscribeQoS sets the QoS requested for entity subscriptions.
func WithSubscribeQoS(qos byte) Option {
	return func(o *Orchestrator) { o.subscribeQoS = qos }
}

// Status is a snapshot of the orchestrator for diagnostics.
type Status struct {
	Stage       string `json:"stage"`
	CoarseReady bool   `json:"coarse_ready"`
	FineReady   bool   `json:"fine_ready"`
	Suspended   bool   `json:"suspended"`
	AppInitDone bool   `json:"application_init_done"`
	Announced   bool   `json:"announced"`
	AnnounceErr string `json:"announce_error,omitempty"`
	Subscribed  int    `json:"subscribed"`
	ReadyCycles int    `json:"ready_cycles"`
	Consumed    uint64 `json:"inbound_consumed"`
	Held        uint64 `json:"inbound_held"`
	Unmatched   uint64 `json:"inbound_unmatched"`
}

// subscription tracks one SUBSCRIBE for the current session.
type subscription struct {
	topic   string
	attempt session.Attempt
	done    bool
	failed  time.Time
}

// Orchestrator drives link, session, announcement, subscription and flush.
type Orchestrator struct {
	link      Link
	session   *session.Guard
	registry  *entity.Registry
	announcer *announce.Publisher
	clock     clock.Clock
	logger    Logger

	flushWindow  time.Duration
	hubOnline    string
	publishQoS   byte
	retain       bool
	subscribeQoS byte

	stage         Stage
	started       bool
	suspended     bool
	appInitDone   bool
	readyEdge     bool
	announced     bool
	flushDeadline time.Time
	listener      *session.Listener
	subs          []*subscription

	readyCycles int
	consumed    uint64
	held        uint64
	unmatched   uint64
}

// New creates an Orchestrator. The registry and announcer are owned by the
// caller; the Orchestrator becomes the registry's publisher.
func New(link Link, sess *session.Guard, registry *entity.Registry, announcer *announce.Publisher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		link:         link,
		session:      sess,
		registry:     registry,
		announcer:    announcer,
		clock:        clock.Real{},
		logger:       noopLogger{},
		flushWindow:  DefaultFlushWindow,
		publishQoS:   1,
		subscribeQoS: 1,
	}
	for _, opt := range opts {
		opt(o)
	}
	registry.SetPublisher(o)
	return o
}

// LoadAnnouncementPayload sets the discovery payload. It must be called
// before the first Poll.
func (o *Orchestrator) LoadAnnouncementPayload(payload []byte) error {
	if o.started {
		return ErrStarted
	}
	o.announcer.LoadPayload(payload)
	return nil
}

// LoadEntityTable registers the entity table. It must be called before
// the first Poll.
func (o *Orchestrator) LoadEntityTable(table entity.Table) error {
	if o.started {
		return ErrStarted
	}
	return o.registry.Load(table)
}

// Poll advances the sequence by one non-blocking pass.
func (o *Orchestrator) Poll() {
	o.started = true

	linkOK := o.link.Poll()
	sessionOK := false
	if !o.suspended {
		// The session guard sees the link state itself and reports false
		// while the link is down.
		sessionOK = o.session.Poll()
	}

	if !linkOK {
		if o.stage != StageAwaitLink {
			o.restart(StageAwaitLink, "link lost")
		}
		return
	}
	if o.stage == StageAwaitLink {
		o.stage = StageAwaitSession
		o.logger.Info("link attached, awaiting session")
	}
	if o.suspended {
		return
	}
	if !sessionOK {
		if o.stage > StageAwaitSession {
			o.restart(StageAwaitLink, "session lost")
		}
		return
	}

	switch o.stage {
	case StageAwaitSession:
		if o.session.JustConnected() {
			o.stage = StageAwaitAnnounce
			o.logger.Info("session attached, announcing")
		}
	case StageAwaitAnnounce:
		o.announce()
	case StageAwaitSubscribe:
		o.subscribe()
	case StageFlushing:
		if !o.clock.Now().Before(o.flushDeadline) {
			o.enterReady()
		}
	}

	o.session.Deliver()
}

// announce publishes the discovery payload once and moves on regardless of
// the outcome.
func (o *Orchestrator) announce() {
	if !o.announcer.Loaded() {
		o.logger.Warn("no announcement payload loaded, skipping discovery")
	} else {
		o.announced = o.announcer.Publish()
	}
	o.stage = StageAwaitSubscribe
}

// subscribe installs the inbound handler, then issues one SUBSCRIBE per
// inbound topic and waits for all of them to complete.
func (o *Orchestrator) subscribe() {
	if o.listener == nil {
		l, err := o.session.Listen(o.handle)
		if err != nil {
			o.logger.Warn("installing inbound handler failed", "error", err)
			return
		}
		o.listener = l
		o.subs = o.subs[:0]
		for _, topic := range o.registry.InboundTopics() {
			o.subs = append(o.subs, &subscription{topic: topic})
		}
	}

	now := o.clock.Now()
	complete := true
	for _, s := range o.subs {
		if s.done {
			continue
		}
		if s.attempt == nil {
			if !s.failed.IsZero() && now.Sub(s.failed) < subscribeRetry {
				complete = false
				continue
			}
			attempt, err := o.listener.Subscribe(s.topic, o.subscribeQoS)
			if err != nil {
				o.logger.Warn("subscribe refused", "topic", s.topic, "error", err)
				o.listener = nil
				return
			}
			s.attempt = attempt
		}
		if !s.attempt.Done() {
			complete = false
			continue
		}
		if err := s.attempt.Err(); err != nil {
			o.logger.Warn("subscribe failed", "topic", s.topic, "error", err)
			s.attempt = nil
			s.failed = now
			complete = false
			continue
		}
		s.done = true
		o.logger.Debug("subscribed", "topic", s.topic)
	}
	if !complete {
		return
	}

	o.flushDeadline = now.Add(o.flushWindow)
	o.stage = StageFlushing
	o.logger.Info("subscriptions established, flushing retained messages",
		"topics", len(o.subs),
		"flush_ms", o.flushWindow.Milliseconds(),
	)
}

func (o *Orchestrator) enterReady() {
	o.stage = StageReady
	o.readyEdge = true
	o.readyCycles++
	o.logger.Info("communication ready", "cycle", o.readyCycles)
}

// restart drops everything tied to the current session.
func (o *Orchestrator) restart(to Stage, reason string) {
	o.logger.Warn("communication sequence restarted", "from", o.stage.String(), "reason", reason)
	o.stage = to
	o.appInitDone = false
	o.readyEdge = false
	o.announced = false
	o.listener = nil
	o.subs = nil
	o.flushDeadline = time.Time{}
}

// handle receives every inbound message on the loop goroutine.
func (o *Orchestrator) handle(msg session.Message) {
	flushing := o.stage != StageReady
	if o.registry.Dispatch(msg.Topic, string(msg.Payload), flushing) {
		o.consumed++
		return
	}
	if flushing {
		o.held++
		return
	}
	o.unmatched++
}

// CoarseReady reports whether outbound publishing is possible.
func (o *Orchestrator) CoarseReady() bool {
	if o.suspended || o.stage < StageAwaitAnnounce || !o.session.Attached() {
		return false
	}
	return o.hubIsOnline()
}

func (o *Orchestrator) hubIsOnline() bool {
	if o.hubOnline == "" {
		return true
	}
	e := o.registry.Lookup(o.hubOnline)
	if e == nil {
		return true
	}
	return e.ReadBool()
}

// FineReady reports whether the whole start-up sequence, including the
// application's own initialisation, has completed.
func (o *Orchestrator) FineReady() bool {
	return o.stage == StageReady && o.appInitDone && o.CoarseReady()
}

// ConsumeReadyEdge returns true once per entry into Ready.
func (o *Orchestrator) ConsumeReadyEdge() bool {
	edge := o.readyEdge
	o.readyEdge = false
	return edge
}

// MarkApplicationInitDone records that the application finished its
// start-up work for the current cycle.
func (o *Orchestrator) MarkApplicationInitDone() {
	o.appInitDone = true
}

// Lookup returns the entity called name, or nil.
func (o *Orchestrator) Lookup(name string) *entity.Entity {
	return o.registry.Lookup(name)
}

// Registry returns the entity registry.
func (o *Orchestrator) Registry() *entity.Registry { return o.registry }

// Publish sends payload to topic once coarse readiness is reached. log
// selects Info over Debug for the publish log line.
func (o *Orchestrator) Publish(topic, payload string, log bool) error {
	if !o.CoarseReady() {
		return ErrNotReady
	}
	if err := o.session.Publish(topic, []byte(payload), o.publishQoS, o.retain); err != nil {
		o.logger.Warn("publish failed", "topic", topic, "error", err)
		return err
	}
	if log {
		o.logger.Info("published", "topic", topic, "payload", payload)
	} else {
		o.logger.Debug("published", "topic", topic, "payload", payload)
	}
	return nil
}

// Pump waits up to d for outstanding publish acknowledgements and then
// delivers queued inbound messages.
func (o *Orchestrator) Pump(d time.Duration) int {
	return o.session.Pump(d)
}

// SuspendSession tears the broker session down cleanly and keeps it down
// until ResumeSession. The link stays up.
func (o *Orchestrator) SuspendSession() {
	if o.suspended {
		return
	}
	o.suspended = true
	o.session.Disconnect()
	next := StageAwaitSession
	if o.stage == StageAwaitLink {
		next = StageAwaitLink
	}
	o.restart(next, "session suspended")
}

// ResumeSession lets the sequence reconnect after SuspendSession.
func (o *Orchestrator) ResumeSession() {
	if !o.suspended {
		return
	}
	o.suspended = false
	o.logger.Info("session resumed")
}

// Suspended reports whether the session is held down.
func (o *Orchestrator) Suspended() bool { return o.suspended }

// Stage returns the current stage.
func (o *Orchestrator) Stage() Stage { return o.stage }

// Status returns a diagnostics snapshot.
func (o *Orchestrator) Status() Status {
	st := Status{
		Stage:       o.stage.String(),
		CoarseReady: o.CoarseReady(),
		FineReady:   o.FineReady(),
		Suspended:   o.suspended,
		AppInitDone: o.appInitDone,
		Announced:   o.announced,
		ReadyCycles: o.readyCycles,
		Consumed:    o.consumed,
		Held:        o.held,
		Unmatched:   o.unmatched,
	}
	if err := o.announcer.LastErr(); err != nil && !o.announced {
		st.AnnounceErr = err.Error()
	}
	for _, s := range o.subs {
		if s.done {
			st.Subscribed++
		}
	}
	return st
}
