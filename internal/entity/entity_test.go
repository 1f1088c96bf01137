package entity

import (
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-node/internal/prefs"
)

type publication struct {
	topic   string
	payload string
	log     bool
}

type recordingPublisher struct {
	sent []publication
	err  error
}

func (p *recordingPublisher) Publish(topic, payload string, log bool) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, publication{topic, payload, log})
	return nil
}

func (p *recordingPublisher) last() publication {
	if len(p.sent) == 0 {
		return publication{}
	}
	return p.sent[len(p.sent)-1]
}

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *prefs.Memory, *recordingPublisher) {
	t.Helper()
	store := prefs.NewMemory()
	pub := &recordingPublisher{}
	r := NewRegistry(store, append([]Option{WithPublisher(pub)}, opts...)...)
	return r, store, pub
}

func mustRegister(t *testing.T, r *Registry, spec Spec) *Entity {
	t.Helper()
	e, err := r.Register(spec)
	if err != nil {
		t.Fatalf("Register(%q) error = %v", spec.Name, err)
	}
	return e
}

func stored(t *testing.T, store prefs.Store, key string) string {
	t.Helper()
	ns, err := store.Begin(DefaultNamespace, true)
	if err != nil {
		t.Fatal(err)
	}
	defer ns.End()
	return ns.GetString(key, "<absent>")
}

func TestInit_ControlRestoresPersisted(t *testing.T) {
	r, store, _ := newTestRegistry(t)
	e := mustRegister(t, r, Spec{Name: "setpoint", Behavior: Control, Resolution: "0.1", Default: "20"})

	ns, _ := store.Begin(DefaultNamespace, false)
	ns.PutString("setpoint", "21.46")
	ns.End()

	e.Init()
	if !e.Initialized() {
		t.Fatal("Initialized() = false after Init")
	}
	if got := e.Read(); got != "21.5" {
		t.Errorf("Read() = %q, want normalised 21.5", got)
	}
	if e.OnChange() {
		t.Error("OnChange() right after Init should be false")
	}
}

func TestInit_FallsBackToDefault(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctrl := mustRegister(t, r, Spec{Name: "mode", Behavior: Control, Default: "AUTO"})
	ind := mustRegister(t, r, Spec{Name: "ip", Behavior: Indicator, Default: "0.0.0.0"})

	r.InitAll()
	if ctrl.Read() != "AUTO" {
		t.Errorf("control = %q, want AUTO", ctrl.Read())
	}
	if ind.Read() != "0.0.0.0" {
		t.Errorf("indicator = %q, want 0.0.0.0", ind.Read())
	}
}

func TestWrite_ControlPersistsThenPublishes(t *testing.T) {
	r, store, pub := newTestRegistry(t)
	e := mustRegister(t, r, Spec{Name: "setpoint", Behavior: Control, Out: "virgo/setpoint/toHA", Resolution: "0.01"})

	e.WriteText("19.456")

	if got := stored(t, store, e.Key()); got != "19.46" {
		t.Errorf("persisted = %q, want 19.46", got)
	}
	if got := pub.last(); got.topic != "virgo/setpoint/toHA" || got.payload != "19.46" || !got.log {
		t.Errorf("published %+v", got)
	}
	if e.OnChange() {
		t.Error("Write should advance the acknowledged marker")
	}
}

func TestWrite_IndicatorDoesNotPersist(t *testing.T) {
	r, store, pub := newTestRegistry(t)
	e := mustRegister(t, r, Spec{Name: "ip", Behavior: Indicator, Out: "virgo/ip/toHA", Silent: true})

	e.WriteText("10.0.0.7")

	if store.Len(DefaultNamespace) != 0 {
		t.Error("indicator write was persisted")
	}
	if got := pub.last(); got.payload != "10.0.0.7" || got.log {
		t.Errorf("published %+v, want silent 10.0.0.7", got)
	}
}

func TestWrite_TypedValues(t *testing.T) {
	r, _, pub := newTestRegistry(t)
	e := mustRegister(t, r, Spec{Name: "temp", Behavior: Indicator, Out: "t", Resolution: "0.1"})

	e.WriteFloat(21.04)
	if pub.last().payload != "21.0" {
		t.Errorf("WriteFloat payload = %q", pub.last().payload)
	}
	e.WriteInt(5)
	if pub.last().payload != "5" {
		t.Errorf("WriteInt payload = %q", pub.last().payload)
	}
	e.WriteBool(true)
	if pub.last().payload != "ON" || !e.ReadBool() {
		t.Errorf("WriteBool payload = %q", pub.last().payload)
	}
}

func TestWrite_PublishErrorIsNotFatal(t *testing.T) {
	r, _, pub := newTestRegistry(t)
	pub.err = errors.New("not ready")
	e := mustRegister(t, r, Spec{Name: "x", Behavior: Control, Out: "x/out"})

	e.WriteText("1")
	if e.Read() != "1" {
		t.Errorf("value = %q, want 1 despite publish failure", e.Read())
	}
}

func TestOnChange_TriggerFiresOncePerWrite(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	e := mustRegister(t, r, Spec{Name: "ota", Behavior: Trigger, In: "virgo/OTA/fromHA"})

	e.WriteText("PRESS")
	if !e.OnChange() {
		t.Fatal("first OnChange() = false, want true")
	}
	if e.OnChange() {
		t.Error("second OnChange() = true, want false")
	}
	if !e.Value().IsEmpty() {
		t.Errorf("trigger value = %q after OnChange, want empty", e.Read())
	}

	e.WriteText("")
	if e.OnChange() {
		t.Error("OnChange() after empty write = true")
	}
}

func TestOnChange_TracksAcknowledgedValue(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	e := mustRegister(t, r, Spec{Name: "hub_online", Behavior: Internal, In: "HA/online", Default: "false"})
	e.Init()

	if !e.Dispatch("HA/online", "true", false) {
		t.Fatal("Dispatch() = false")
	}
	if !e.OnChange() {
		t.Error("OnChange() after new value = false")
	}
	if e.OnChange() {
		t.Error("repeated OnChange() = true")
	}
	e.Dispatch("HA/online", "true", false)
	if e.OnChange() {
		t.Error("OnChange() after identical value = true")
	}
}

func TestDispatch_Rules(t *testing.T) {
	tests := []struct {
		name  string
		spec  Spec
		topic string
		flush bool
		want  bool
	}{
		{"no inbound topic", Spec{Name: "a", Behavior: Control}, "x", false, false},
		{"indicator never consumes", Spec{Name: "a", Behavior: Indicator, In: "x"}, "x", false, false},
		{"topic mismatch", Spec{Name: "a", Behavior: Control, In: "x"}, "y", false, false},
		{"control accepted", Spec{Name: "a", Behavior: Control, In: "x"}, "x", false, true},
		{"control held during flush", Spec{Name: "a", Behavior: Control, In: "x"}, "x", true, false},
		{"trigger held during flush", Spec{Name: "a", Behavior: Trigger, In: "x"}, "x", true, false},
		{"internal during flush", Spec{Name: "a", Behavior: Internal, In: "x"}, "x", true, true},
		{"internal mismatch during flush", Spec{Name: "a", Behavior: Internal, In: "x"}, "y", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newTestRegistry(t)
			e := mustRegister(t, r, tt.spec)
			if got := e.Dispatch(tt.topic, "1", tt.flush); got != tt.want {
				t.Errorf("Dispatch() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDispatch_ControlAfterFlushPersistsAndEchoes(t *testing.T) {
	r, store, pub := newTestRegistry(t)
	e := mustRegister(t, r, Spec{
		Name: "relay", Behavior: Control,
		Out: "virgo/relay/toHA", In: "virgo/relay/fromHA",
	})
	e.Init()

	if e.Dispatch("virgo/relay/fromHA", "ON", true) {
		t.Fatal("Dispatch() during flush = true")
	}
	if e.Read() != "" || len(pub.sent) != 0 {
		t.Fatal("flushed message changed state")
	}

	if !e.Dispatch("virgo/relay/fromHA", "ON", false) {
		t.Fatal("Dispatch() after flush = false")
	}
	if e.Read() != "ON" {
		t.Errorf("value = %q, want ON", e.Read())
	}
	if got := stored(t, store, e.Key()); got != "ON" {
		t.Errorf("persisted = %q, want ON", got)
	}
	if got := pub.last(); got.topic != "virgo/relay/toHA" || got.payload != "ON" {
		t.Errorf("echo = %+v", got)
	}
	if !e.OnChange() {
		t.Error("OnChange() after inbound value = false")
	}
}

func TestDispatch_NonControlDoesNotEcho(t *testing.T) {
	r, store, pub := newTestRegistry(t)
	e := mustRegister(t, r, Spec{Name: "beat", Behavior: Internal, Out: "o", In: "i"})

	e.Dispatch("i", "42", false)
	if len(pub.sent) != 0 || store.Len(DefaultNamespace) != 0 {
		t.Error("internal entity echoed or persisted an inbound value")
	}
}

func TestReset_ClearsPersistedOnly(t *testing.T) {
	r, store, _ := newTestRegistry(t)
	e := mustRegister(t, r, Spec{Name: "mode", Behavior: Control, Default: "AUTO"})
	e.WriteText("HEAT")

	e.Reset()
	if got := stored(t, store, e.Key()); got != "<absent>" {
		t.Errorf("persisted after Reset = %q", got)
	}
	if !e.Value().IsEmpty() {
		t.Errorf("value after Reset = %q", e.Read())
	}

	e.Init()
	if e.Read() != "AUTO" {
		t.Errorf("Init after Reset = %q, want default", e.Read())
	}
}

func TestPublishValue_ControlOnly(t *testing.T) {
	r, _, pub := newTestRegistry(t)
	mustRegister(t, r, Spec{Name: "c", Behavior: Control, Out: "c/out", Default: "1"})
	mustRegister(t, r, Spec{Name: "i", Behavior: Indicator, Out: "i/out", Default: "2"})
	r.InitAll()

	r.PublishAll()
	if len(pub.sent) != 1 || pub.sent[0].topic != "c/out" {
		t.Errorf("PublishAll sent %+v, want only c/out", pub.sent)
	}
}

func TestShortenKey(t *testing.T) {
	if got := shortenKey("short_name"); got != "short_name" {
		t.Errorf("short name changed: %q", got)
	}
	if got := shortenKey("abcdefghijklmno"); got != "abcdefghijklmno" {
		t.Errorf("15-byte name changed: %q", got)
	}
	// 'a'..'p' sums to 1672.
	if got := shortenKey("abcdefghijklmnop"); got != "cdefghijklmnop2" {
		t.Errorf("shortenKey() = %q, want cdefghijklmnop2", got)
	}

	long := "IotBridge_HA_heartbeat"
	first := shortenKey(long)
	if len(first) != maxKeyLen {
		t.Errorf("len = %d, want %d", len(first), maxKeyLen)
	}
	if !strings.HasPrefix(first, long[len(long)-14:]) {
		t.Errorf("key %q does not keep the tail of %q", first, long)
	}
	for i := 0; i < 3; i++ {
		if shortenKey(long) != first {
			t.Fatal("shortenKey is not stable")
		}
	}

	a := shortenKey("A_living_room_temperature")
	b := shortenKey("B_living_room_temperature")
	if a == b {
		t.Errorf("names sharing a tail collide: %q", a)
	}
	if a[:14] != b[:14] {
		t.Errorf("tails differ: %q vs %q", a, b)
	}
}
