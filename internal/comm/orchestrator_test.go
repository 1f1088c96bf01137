package comm

import (
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/announce"
	"github.com/nerrad567/gray-logic-node/internal/clock"
	"github.com/nerrad567/gray-logic-node/internal/entity"
	"github.com/nerrad567/gray-logic-node/internal/param"
	"github.com/nerrad567/gray-logic-node/internal/prefs"
	"github.com/nerrad567/gray-logic-node/internal/session"
	"github.com/nerrad567/gray-logic-node/internal/session/sessiontest"
)

const (
	configTopic = "homeassistant/device/node-01/config"
	relaySet    = "node-01/relay/set"
	relayState  = "node-01/relay/state"
	modeSet     = "node-01/mode/set"
	hubOnline   = "HA/online"
)

const validAnnouncement = `{"device":{"identifiers":"node-01","name":"Node"},"cmps":{"relay":{"p":"switch"}}}`

type zeroJitter struct{}

func (zeroJitter) Int64N(int64) int64 { return 0 }

// fakeLink serves both as the link guard polled by the orchestrator and the
// link status read by the session guard.
type fakeLink struct {
	sessiontest.Link
}

func (l *fakeLink) Poll() bool { return l.Attached() }

type fixture struct {
	o     *Orchestrator
	tr    *sessiontest.Transport
	link  *fakeLink
	clock *clock.Fake
	reg   *entity.Registry
	t0    time.Time
}

func newFixture(t *testing.T, table entity.Table, payload string, opts ...Option) *fixture {
	t.Helper()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(t0)
	tr := sessiontest.New()
	tr.Async = true
	ln := &fakeLink{}
	params := param.NewMap(map[string]string{
		param.KeyDeviceID: "node-01",
		param.KeyMQTTHost: "192.0.2.10",
	})

	sess := session.NewGuard(tr, ln, params, session.WithClock(clk), session.WithJitter(zeroJitter{}))
	reg := entity.NewRegistry(prefs.NewMemory())
	pub, err := announce.NewPublisher(sess, configTopic, nil)
	if err != nil {
		t.Fatal(err)
	}

	o := New(ln, sess, reg, pub, append([]Option{WithClock(clk), WithFlushWindow(3 * time.Second)}, opts...)...)
	if err := o.LoadEntityTable(table); err != nil {
		t.Fatalf("LoadEntityTable() error = %v", err)
	}
	if payload != "" {
		if err := o.LoadAnnouncementPayload([]byte(payload)); err != nil {
			t.Fatal(err)
		}
	}
	reg.InitAll()
	return &fixture{o: o, tr: tr, link: ln, clock: clk, reg: reg, t0: t0}
}

func threeEntities() entity.Table {
	return entity.Table{Entities: []entity.Spec{
		{Name: "relay", Behavior: entity.Control, Out: relayState, In: relaySet, Default: "OFF"},
		{Name: "mode", Behavior: entity.Control, In: modeSet, Default: "AUTO"},
		{Name: "ota", Behavior: entity.Trigger, In: "node-01/ota/press"},
	}}
}

// attach brings link and session up and stops in AwaitAnnounce.
func (f *fixture) attach(t *testing.T) {
	t.Helper()
	f.link.Set(true)
	f.o.Poll()
	f.tr.CompleteConnect(nil)
	f.o.Poll()
	if f.o.Stage() != StageAwaitAnnounce {
		t.Fatalf("stage after attach = %v", f.o.Stage())
	}
}

// toFlushing runs announce and subscribe.
func (f *fixture) toFlushing(t *testing.T) {
	t.Helper()
	f.attach(t)
	f.o.Poll()
	f.o.Poll()
	if f.o.Stage() != StageFlushing {
		t.Fatalf("stage = %v, want flushing", f.o.Stage())
	}
}

func (f *fixture) toReady(t *testing.T) {
	t.Helper()
	f.toFlushing(t)
	f.clock.Advance(3 * time.Second)
	f.o.Poll()
	if f.o.Stage() != StageReady {
		t.Fatalf("stage = %v, want ready", f.o.Stage())
	}
}

func (f *fixture) at(d time.Duration) {
	f.clock.Set(f.t0.Add(d))
}

func TestOrchestrator_EndToEndSequence(t *testing.T) {
	f := newFixture(t, threeEntities(), validAnnouncement)
	relay := f.reg.Lookup("relay")

	// t=0: link attaches, session attempt pending.
	f.link.Set(true)
	f.o.Poll()
	if f.o.CoarseReady() {
		t.Fatal("coarse ready before session")
	}

	// t=50ms: session attaches.
	f.at(50 * time.Millisecond)
	f.tr.CompleteConnect(nil)
	f.o.Poll()
	if !f.o.CoarseReady() {
		t.Fatal("CoarseReady() = false at t=50ms")
	}

	f.o.Poll() // announce
	f.o.Poll() // subscribe
	if f.o.Stage() != StageFlushing {
		t.Fatalf("stage = %v, want flushing", f.o.Stage())
	}
	if got := f.tr.PublishedTo(configTopic); len(got) != 1 || !got[0].Retained || got[0].QoS != 1 {
		t.Errorf("announcement publications = %+v", got)
	}
	if subs := f.tr.Subscriptions(); len(subs) != 3 {
		t.Errorf("subscriptions = %v, want 3", subs)
	}

	// t=200ms: stale retained command is dropped.
	f.at(200 * time.Millisecond)
	f.tr.Inject(relaySet, "ON", true)
	f.o.Poll()
	if relay.Read() != "OFF" {
		t.Errorf("relay = %q during flush, want OFF", relay.Read())
	}

	for ms := 300; ms <= 3000; ms += 100 {
		f.at(time.Duration(ms) * time.Millisecond)
		f.o.Poll()
		if f.o.FineReady() {
			t.Fatalf("FineReady() = true at t=%dms", ms)
		}
	}

	// t=3100ms: the same message is applied.
	f.at(3100 * time.Millisecond)
	f.tr.Inject(relaySet, "ON", true)
	f.o.Poll()
	if relay.Read() != "ON" {
		t.Errorf("relay = %q after flush, want ON", relay.Read())
	}
	if f.o.FineReady() {
		t.Error("FineReady() = true before MarkApplicationInitDone")
	}
	if !f.o.ConsumeReadyEdge() {
		t.Error("ready edge not raised")
	}

	f.o.MarkApplicationInitDone()
	if !f.o.FineReady() {
		t.Error("FineReady() = false after MarkApplicationInitDone")
	}

	st := f.o.Status()
	if st.Held != 1 || st.Consumed != 1 || st.Subscribed != 3 || !st.Announced {
		t.Errorf("status = %+v", st)
	}
}

func TestOrchestrator_ReadyEdgeOncePerCycle(t *testing.T) {
	f := newFixture(t, threeEntities(), validAnnouncement)

	edges := 0
	poll := func(n int) {
		for i := 0; i < n; i++ {
			f.o.Poll()
			if f.o.ConsumeReadyEdge() {
				edges++
			}
		}
	}

	f.toReady(t)
	if f.o.ConsumeReadyEdge() {
		edges++
	}
	poll(500)
	if edges != 1 {
		t.Fatalf("edges after first cycle = %d, want 1", edges)
	}

	// Session drops and comes back.
	f.tr.SetConnected(false)
	poll(1)
	if f.o.Stage() != StageAwaitLink {
		t.Fatalf("stage after loss = %v", f.o.Stage())
	}
	f.tr.SetConnected(true)
	poll(3)
	if f.o.Stage() != StageFlushing {
		t.Fatalf("stage after reconnect = %v", f.o.Stage())
	}
	f.clock.Advance(3 * time.Second)
	poll(500)

	if edges != 2 {
		t.Errorf("edges after second cycle = %d, want 2", edges)
	}
	if n := len(f.tr.PublishedTo(configTopic)); n != 2 {
		t.Errorf("announcements = %d, want one per session", n)
	}
	if f.o.Status().ReadyCycles != 2 {
		t.Errorf("ReadyCycles = %d", f.o.Status().ReadyCycles)
	}
}

func TestOrchestrator_LinkLossRestarts(t *testing.T) {
	f := newFixture(t, threeEntities(), validAnnouncement)
	f.toReady(t)
	f.o.MarkApplicationInitDone()

	f.link.Set(false)
	f.o.Poll()

	if f.o.Stage() != StageAwaitLink {
		t.Errorf("stage = %v, want await_link", f.o.Stage())
	}
	if f.o.FineReady() || f.o.CoarseReady() {
		t.Error("readiness survived link loss")
	}
	if f.o.Status().AppInitDone {
		t.Error("application init flag survived restart")
	}
}

func TestOrchestrator_HubOnlineGatesCoarseReady(t *testing.T) {
	table := threeEntities()
	table.Entities = append(table.Entities, entity.Spec{
		Name: "hub_online", Behavior: entity.Internal, In: hubOnline, Default: "false",
	})
	f := newFixture(t, table, validAnnouncement, WithHubOnlineEntity("hub_online"))

	f.toFlushing(t)
	if f.o.CoarseReady() {
		t.Fatal("CoarseReady() = true with hub offline")
	}
	if err := f.o.Publish("x", "y", false); !errors.Is(err, ErrNotReady) {
		t.Errorf("Publish() = %v, want ErrNotReady", err)
	}

	// Internal entities are processed during the flush window.
	f.tr.Inject(hubOnline, "true", true)
	f.o.Poll()
	if !f.o.CoarseReady() {
		t.Error("CoarseReady() = false after hub reported online")
	}
}

func TestOrchestrator_ShippedTableLearnsHubPresenceFromRetained(t *testing.T) {
	table, err := entity.LoadTable("../../configs/entities.yaml")
	if err != nil {
		t.Fatalf("LoadTable() error = %v", err)
	}
	f := newFixture(t, table, validAnnouncement, WithHubOnlineEntity("haOnline"))

	hub := f.reg.Lookup("haOnline")
	if hub == nil {
		t.Fatal("shipped table has no haOnline entity")
	}
	if hub.Behavior() != entity.Internal {
		t.Errorf("haOnline behavior = %v, want internal", hub.Behavior())
	}
	// The birth topic is not retained; a late subscriber never sees it.
	if hub.InTopic() == "" || hub.InTopic() == "homeassistant/status" {
		t.Fatalf("haOnline in topic = %q, want a retained presence topic", hub.InTopic())
	}

	// The hub came up long before the node; only its retained value is left.
	f.toFlushing(t)
	if f.o.CoarseReady() {
		t.Fatal("CoarseReady() = true before hub presence is known")
	}
	f.tr.Inject(hub.InTopic(), "true", true)
	f.o.Poll()
	f.clock.Advance(3 * time.Second)
	f.o.Poll()
	if f.o.Stage() != StageReady {
		t.Fatalf("stage = %v, want ready", f.o.Stage())
	}
	if !f.o.CoarseReady() {
		t.Error("CoarseReady() = false after retained hub presence")
	}
}

func TestOrchestrator_PublishGate(t *testing.T) {
	f := newFixture(t, threeEntities(), validAnnouncement, WithPublishQoS(0, true))
	relay := f.reg.Lookup("relay")

	relay.WriteText("ON")
	if len(f.tr.PublishedTo(relayState)) != 0 {
		t.Fatal("entity published before coarse readiness")
	}

	f.attach(t)
	relay.WriteText("OFF")
	got := f.tr.PublishedTo(relayState)
	if len(got) != 1 || got[0].Payload != "OFF" || got[0].QoS != 0 || !got[0].Retained {
		t.Errorf("publications = %+v", got)
	}
	if err := f.o.Publish("node-01/log", "hello", true); err != nil {
		t.Errorf("Publish() = %v", err)
	}
}

func TestOrchestrator_MalformedAnnouncementDoesNotBlock(t *testing.T) {
	f := newFixture(t, threeEntities(), `{"device":`)
	f.toFlushing(t)

	if len(f.tr.PublishedTo(configTopic)) != 0 {
		t.Error("malformed announcement was published")
	}
	st := f.o.Status()
	if st.Announced || st.AnnounceErr == "" {
		t.Errorf("status = %+v", st)
	}
}

func TestOrchestrator_NoAnnouncementPayload(t *testing.T) {
	f := newFixture(t, threeEntities(), "")
	f.toFlushing(t)
	if len(f.tr.PublishedTo(configTopic)) != 0 {
		t.Error("published without payload")
	}
}

func TestOrchestrator_SubscribeFailureRetried(t *testing.T) {
	f := newFixture(t, threeEntities(), validAnnouncement)
	f.tr.SubscribeErr[modeSet] = errors.New("not authorised")

	f.attach(t)
	f.o.Poll() // announce
	f.o.Poll() // subscribe, one fails
	if f.o.Stage() != StageAwaitSubscribe {
		t.Fatalf("stage = %v, want await_subscribe", f.o.Stage())
	}

	delete(f.tr.SubscribeErr, modeSet)
	f.o.Poll()
	if f.o.Stage() != StageAwaitSubscribe {
		t.Fatal("retried before the retry interval")
	}

	f.clock.Advance(time.Second)
	f.o.Poll()
	if f.o.Stage() != StageFlushing {
		t.Errorf("stage = %v, want flushing after retry", f.o.Stage())
	}
	if n := len(f.tr.Subscriptions()); n != 4 {
		t.Errorf("SUBSCRIBE calls = %d, want 4", n)
	}
}

func TestOrchestrator_HandlerInstalledBeforeSubscribe(t *testing.T) {
	f := newFixture(t, threeEntities(), validAnnouncement)
	f.tr.AsyncSubscribe = true

	f.attach(t)
	f.o.Poll() // announce
	f.o.Poll() // subscribe issued, pending

	// Retained message arrives before the SUBACKs.
	f.tr.Inject(relaySet, "ON", true)
	f.o.Poll()
	if f.o.Stage() != StageAwaitSubscribe {
		t.Fatalf("stage = %v", f.o.Stage())
	}
	if f.o.Status().Held != 1 {
		t.Errorf("held = %d, want the retained message to reach the handler", f.o.Status().Held)
	}

	f.tr.CompleteSubscriptions()
	f.o.Poll()
	if f.o.Stage() != StageFlushing {
		t.Errorf("stage = %v, want flushing", f.o.Stage())
	}
}

func TestOrchestrator_UnmatchedTopicIgnored(t *testing.T) {
	f := newFixture(t, threeEntities(), validAnnouncement)
	f.toReady(t)

	f.tr.Inject("someone/else", "1", false)
	f.o.Poll()
	if f.o.Status().Unmatched != 1 {
		t.Errorf("unmatched = %d", f.o.Status().Unmatched)
	}
}

func TestOrchestrator_SuspendAndResume(t *testing.T) {
	f := newFixture(t, threeEntities(), validAnnouncement)
	f.toReady(t)
	connects := len(f.tr.Credentials())

	f.o.SuspendSession()
	if f.tr.Disconnects() != 1 {
		t.Errorf("Disconnects() = %d", f.tr.Disconnects())
	}
	if f.o.Stage() != StageAwaitSession || !f.o.Suspended() {
		t.Errorf("stage = %v suspended = %v", f.o.Stage(), f.o.Suspended())
	}

	for i := 0; i < 50; i++ {
		f.clock.Advance(time.Second)
		f.o.Poll()
	}
	if len(f.tr.Credentials()) != connects {
		t.Error("session reconnected while suspended")
	}
	if f.o.CoarseReady() {
		t.Error("CoarseReady() = true while suspended")
	}

	f.o.ResumeSession()
	f.o.Poll()
	f.tr.CompleteConnect(nil)
	f.o.Poll()
	if f.o.Stage() != StageAwaitAnnounce {
		t.Errorf("stage after resume = %v", f.o.Stage())
	}
}

func TestOrchestrator_LoadAfterStart(t *testing.T) {
	f := newFixture(t, threeEntities(), validAnnouncement)
	f.o.Poll()

	if err := f.o.LoadEntityTable(entity.Table{}); !errors.Is(err, ErrStarted) {
		t.Errorf("LoadEntityTable() = %v, want ErrStarted", err)
	}
	if err := f.o.LoadAnnouncementPayload([]byte(validAnnouncement)); !errors.Is(err, ErrStarted) {
		t.Errorf("LoadAnnouncementPayload() = %v, want ErrStarted", err)
	}
}

func TestStage_String(t *testing.T) {
	if StageFlushing.String() != "flushing" || Stage(42).String() != "unknown" {
		t.Error("Stage.String() mismatch")
	}
}
