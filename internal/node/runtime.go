package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/clock"
	"github.com/nerrad567/gray-logic-node/internal/comm"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/link"
	"github.com/nerrad567/gray-logic-node/internal/session"
)

// Defaults applied when Deps leaves a duration at zero.
const (
	DefaultLoopInterval        = 10 * time.Millisecond
	DefaultPumpDuration        = 200 * time.Millisecond
	DefaultHeartbeatInterval   = 60 * time.Second
	DefaultNetworkInfoInterval = 120 * time.Second

	commandQueueSize = 8
)

// LinkView is the part of the link guard the runtime reads.
type LinkView interface {
	Attached() bool
	State() link.State
	Radio() link.Radio
}

// SessionView is the part of the session guard the runtime reads.
type SessionView interface {
	State() session.State
}

// Telemetry receives state transitions. *influxdb.Client implements it.
type Telemetry interface {
	WriteLinkState(phase string, attempts int, rssi int)
	WriteSessionState(state string, attempts int)
	WriteSequence(stage string, coarse, fine bool)
	WriteEntityValue(entity string, payload string)
}

// Advertiser publishes the node on the local network. *mdns.Advertiser
// implements it.
type Advertiser interface {
	Advertise(instance string, txt []string) error
	Withdraw()
}

// Logger is the logging interface used by the runtime.
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

// Deps holds the collaborators of a Runtime.
type Deps struct {
	Orchestrator *comm.Orchestrator
	Link         LinkView
	Session      SessionView
	Application  config.ApplicationConfig
	Sequence     config.SequenceConfig

	DeviceID string
	Version  string
	BootID   string

	// Optional.
	Clock      clock.Clock
	Logger     Logger
	Telemetry  Telemetry
	Advertiser Advertiser
}

// Runtime runs the device loop.
//
// Thread Safety: Step and Run must be called from one goroutine. Snapshot
// and Submit are safe for concurrent use.
type Runtime struct {
	orch    *comm.Orchestrator
	link    LinkView
	session SessionView
	app     config.ApplicationConfig

	deviceID string
	version  string
	bootID   string

	loopInterval time.Duration
	pumpDuration time.Duration

	clock      clock.Clock
	logger     Logger
	telemetry  Telemetry
	advertiser Advertiser

	commands chan Command
	done     chan struct{}
	stopOnce sync.Once

	// Loop-owned state.
	startedAt     time.Time
	linkUp        bool
	netInfo       link.Info
	lastHeartbeat time.Time
	lastNetInfo   time.Time
	lastLink      link.Phase
	lastSession   session.Phase
	lastStage     comm.Stage
	lastCoarse    bool
	lastFine      bool
	recorded      map[string]string

	mu   sync.RWMutex
	snap Snapshot
}

// New creates a Runtime. Orchestrator, Link and Session are required.
func New(deps Deps) (*Runtime, error) {
	if deps.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if deps.Link == nil {
		return nil, fmt.Errorf("link is required")
	}
	if deps.Session == nil {
		return nil, fmt.Errorf("session is required")
	}

	r := &Runtime{
		orch:         deps.Orchestrator,
		link:         deps.Link,
		session:      deps.Session,
		app:          deps.Application,
		deviceID:     deps.DeviceID,
		version:      deps.Version,
		bootID:       deps.BootID,
		loopInterval: orDefault(deps.Sequence.LoopInterval, DefaultLoopInterval),
		pumpDuration: orDefault(deps.Sequence.PumpDuration, DefaultPumpDuration),
		clock:        deps.Clock,
		logger:       deps.Logger,
		telemetry:    deps.Telemetry,
		advertiser:   deps.Advertiser,
		commands:     make(chan Command, commandQueueSize),
		done:         make(chan struct{}),
		lastStage:    -1,
		recorded:     make(map[string]string),
	}
	r.app.HeartbeatInterval = orDefault(r.app.HeartbeatInterval, DefaultHeartbeatInterval)
	r.app.NetworkInfoInterval = orDefault(r.app.NetworkInfoInterval, DefaultNetworkInfoInterval)
	if r.clock == nil {
		r.clock = clock.Real{}
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}
	r.startedAt = r.clock.Now()

	if e := r.orch.Lookup(r.app.HeartbeatEntity); e != nil {
		e.SetLogWrites(false)
	}
	r.publishSnapshot()
	return r, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Run drives Step every loop interval until ctx is cancelled, then shuts
// the session down cleanly.
func (r *Runtime) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.loopInterval)
	defer ticker.Stop()

	r.logger.Info("node runtime started",
		"device_id", r.deviceID,
		"loop_ms", r.loopInterval.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			r.Shutdown()
			return nil
		case <-ticker.C:
			r.Step()
		}
	}
}

// Step runs one pass of the loop.
func (r *Runtime) Step() {
	r.drainCommands()
	r.orch.Poll()
	r.trackLink()

	if r.orch.ConsumeReadyEdge() {
		r.initialise()
	}

	if r.orch.FineReady() {
		now := r.clock.Now()
		if now.Sub(r.lastHeartbeat) >= r.app.HeartbeatInterval {
			r.heartbeat(now)
		}
		if now.Sub(r.lastNetInfo) >= r.app.NetworkInfoInterval {
			r.refreshNetInfo(now)
			r.writeText(r.app.NetworkInfoEntity, r.netInfoText())
		}
	}

	r.checkUpdateRequest()
	r.recordTransitions()
	r.publishSnapshot()
}

// Shutdown records a final logbook line, withdraws the mDNS service and
// disconnects the broker session. It stops command intake.
func (r *Runtime) Shutdown() {
	r.stopOnce.Do(func() { close(r.done) })
	r.Log("shutting down")
	r.orch.Pump(r.pumpDuration)
	if r.advertiser != nil {
		r.advertiser.Withdraw()
	}
	r.orch.SuspendSession()
	r.publishSnapshot()
	r.logger.Info("node runtime stopped")
}

// Log mirrors msg to the logbook entity when one is configured and the
// session can publish.
func (r *Runtime) Log(msg string) {
	r.logger.Info("logbook", "message", msg)
	if r.orch.CoarseReady() {
		r.writeText(r.app.LogEntity, msg)
	}
}

// initialise runs the application start-up work for a fresh Ready cycle.
func (r *Runtime) initialise() {
	now := r.clock.Now()
	r.orch.Registry().PublishAll()
	r.writeText(r.app.VersionEntity, r.version)

	r.refreshNetInfo(now)
	r.writeText(r.app.AddressEntity, r.netInfo.Address)
	r.writeText(r.app.NetworkInfoEntity, r.netInfoText())
	r.Log(fmt.Sprintf("online %s", r.version))

	r.orch.Pump(r.pumpDuration)
	r.orch.MarkApplicationInitDone()
	r.heartbeat(now)
	r.logger.Info("application initialised", "cycle", r.orch.Status().ReadyCycles)
}

func (r *Runtime) heartbeat(now time.Time) {
	r.lastHeartbeat = now
	e := r.orch.Lookup(r.app.HeartbeatEntity)
	if e == nil {
		return
	}
	e.WriteInt(int64(now.Sub(r.startedAt) / time.Second))
}

// checkUpdateRequest handles a press of the update trigger: the session is
// released so an external updater can take over the broker connection.
func (r *Runtime) checkUpdateRequest() {
	e := r.orch.Lookup(r.app.UpdateEntity)
	if e == nil || !e.OnChange() {
		return
	}
	r.Log("update requested, releasing session")
	r.orch.Pump(r.pumpDuration)
	r.orch.SuspendSession()
}

// trackLink follows link attach and loss for mDNS and network info.
func (r *Runtime) trackLink() {
	up := r.link.Attached()
	if up == r.linkUp {
		return
	}
	r.linkUp = up

	if !up {
		r.netInfo = link.Info{}
		if r.advertiser != nil {
			r.advertiser.Withdraw()
		}
		return
	}

	r.refreshNetInfo(r.clock.Now())
	r.logger.Info("network info",
		"ssid", r.netInfo.SSID,
		"rssi", r.netInfo.RSSI,
		"address", r.netInfo.Address,
	)
	if r.advertiser != nil {
		txt := []string{"id=" + r.deviceID, "version=" + r.version}
		if r.netInfo.Address != "" {
			txt = append(txt, "ip="+r.netInfo.Address)
		}
		if err := r.advertiser.Advertise(r.deviceID, txt); err != nil {
			r.logger.Warn("mdns advertisement failed", "error", err)
		}
	}
}

func (r *Runtime) refreshNetInfo(now time.Time) {
	r.lastNetInfo = now
	info, err := r.link.Radio().Info()
	if err != nil {
		r.logger.Warn("reading network info failed", "error", err)
		return
	}
	r.netInfo = info
}

func (r *Runtime) netInfoText() string {
	if r.netInfo.SSID == "" {
		return ""
	}
	return fmt.Sprintf("%s @ %d dB", r.netInfo.SSID, r.netInfo.RSSI)
}

func (r *Runtime) writeText(name, value string) {
	if name == "" || value == "" {
		return
	}
	if e := r.orch.Lookup(name); e != nil {
		e.WriteText(value)
	}
}

// recordTransitions forwards state changes to telemetry.
func (r *Runtime) recordTransitions() {
	if r.telemetry == nil {
		return
	}

	ls := r.link.State()
	if ls.Phase != r.lastLink {
		r.lastLink = ls.Phase
		r.telemetry.WriteLinkState(ls.Phase.String(), ls.Attempts, r.netInfo.RSSI)
	}

	ss := r.session.State()
	if ss.Phase != r.lastSession {
		r.lastSession = ss.Phase
		r.telemetry.WriteSessionState(ss.Phase.String(), ss.Attempts)
	}

	stage, coarse, fine := r.orch.Stage(), r.orch.CoarseReady(), r.orch.FineReady()
	if stage != r.lastStage || coarse != r.lastCoarse || fine != r.lastFine {
		r.lastStage, r.lastCoarse, r.lastFine = stage, coarse, fine
		r.telemetry.WriteSequence(stage.String(), coarse, fine)
	}

	for _, e := range r.orch.Registry().Entities() {
		if !e.Initialized() {
			continue
		}
		v := e.Read()
		if prev, ok := r.recorded[e.Name()]; ok && prev == v {
			continue
		}
		r.recorded[e.Name()] = v
		if v != "" {
			r.telemetry.WriteEntityValue(e.Name(), v)
		}
	}
}
