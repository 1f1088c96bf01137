package entity

import (
	"strconv"

	"github.com/nerrad567/gray-logic-node/internal/prefs"
)

// maxKeyLen is the longest persistence key stored verbatim.
const maxKeyLen = 15

// DefaultNamespace is the persistence namespace shared by all entities.
const DefaultNamespace = "Pref"

// Spec is one row of the entity table.
type Spec struct {
	// Name is the unique, stable identifier. It also derives the persistence key.
	Name string `yaml:"name" json:"name"`

	Behavior Behavior `yaml:"behavior" json:"behavior"`

	// Out is the topic the entity publishes its value to. Optional.
	Out string `yaml:"out,omitempty" json:"out,omitempty"`

	// In is the topic the entity consumes. Optional.
	In string `yaml:"in,omitempty" json:"in,omitempty"`

	// Resolution sets numeric precision: "0.1" keeps one decimal. Empty
	// leaves values untouched.
	Resolution string `yaml:"resolution,omitempty" json:"resolution,omitempty"`

	// Default is the value used when nothing is persisted.
	Default string `yaml:"default,omitempty" json:"default,omitempty"`

	// Silent suppresses the per-write log line.
	Silent bool `yaml:"silent,omitempty" json:"silent,omitempty"`

	// Component is the announcement block for this entity, merged into the
	// payload's component map under the entity's short name.
	Component map[string]any `yaml:"component,omitempty" json:"component,omitempty"`
}

// Publisher sends an entity value to the broker.
type Publisher interface {
	Publish(topic, payload string, log bool) error
}

// env is the state shared by every entity of a Registry.
type env struct {
	publisher Publisher
	store     prefs.Store
	namespace string
	logger    Logger
}

// Entity is one device-exposed value.
type Entity struct {
	spec        Spec
	key         string
	decimals    int
	value       Value
	acked       Value
	initialized bool
	logWrites   bool
	env         *env
}

// newEntity builds an entity bound to the registry environment.
func newEntity(spec Spec, e *env) *Entity {
	return &Entity{
		spec:      spec,
		key:       shortenKey(spec.Name),
		decimals:  computeDecimals(spec.Resolution),
		logWrites: !spec.Silent,
		env:       e,
	}
}

// Name returns the entity's unique name.
func (e *Entity) Name() string { return e.spec.Name }

// Behavior returns the entity's kind.
func (e *Entity) Behavior() Behavior { return e.spec.Behavior }

// OutTopic returns the outbound topic, or "".
func (e *Entity) OutTopic() string { return e.spec.Out }

// InTopic returns the inbound topic, or "".
func (e *Entity) InTopic() string { return e.spec.In }

// Key returns the persistence key derived from the name.
func (e *Entity) Key() string { return e.key }

// Decimals returns the precision derived from the resolution.
func (e *Entity) Decimals() int { return e.decimals }

// Spec returns a copy of the table row the entity was built from.
func (e *Entity) Spec() Spec { return e.spec }

// Announced reports whether the entity belongs in the announcement.
func (e *Entity) Announced() bool { return e.spec.Behavior.announced() }

// Initialized reports whether Init has run.
func (e *Entity) Initialized() bool { return e.initialized }

// SetLogWrites turns the per-write log line on or off.
func (e *Entity) SetLogWrites(enable bool) { e.logWrites = enable }

// Init loads the starting value. Control entities restore the persisted
// value, falling back to the default when nothing is stored. Other kinds
// start from the default.
func (e *Entity) Init() {
	start := e.spec.Default
	source := "default"

	if e.spec.Behavior.persisted() {
		if stored := e.load(); stored != "" || e.spec.Default == "" {
			start = stored
			source = "persisted"
		}
	}

	e.value = e.parse(start)
	e.acked = e.value
	e.initialized = true
	e.env.logger.Debug("entity initialised",
		"entity", e.spec.Name,
		"key", e.key,
		"value", e.value.String(),
		"source", source,
	)
}

// Write sets a device-originated value. Float-like text is normalised to
// the entity's precision. Control entities persist before publishing.
// The acknowledged marker follows the value, so Write alone does not
// register as a change except for Trigger entities.
func (e *Entity) Write(v Value) {
	if v.Kind() == KindText {
		v = e.parse(v.String())
	}
	e.value = v
	e.acked = v
	if e.spec.Behavior.persisted() {
		e.save(v.String())
	}
	e.publish(v.String())
}

// WriteText writes a text value.
func (e *Entity) WriteText(s string) { e.Write(Text(s)) }

// WriteInt writes an integer value.
func (e *Entity) WriteInt(n int64) { e.Write(Int(n)) }

// WriteFloat writes a float printed with the entity's precision.
func (e *Entity) WriteFloat(f float64) { e.Write(Float(f, e.decimals)) }

// WriteBool writes "ON" or "OFF".
func (e *Entity) WriteBool(b bool) { e.Write(Bool(b)) }

// OnChange reports whether the value changed since the last call.
// Trigger entities report true once per non-empty value and then clear.
// Other kinds compare against the acknowledged marker and advance it.
func (e *Entity) OnChange() bool {
	if e.value.IsEmpty() {
		return false
	}
	if e.spec.Behavior == Trigger {
		e.value = Value{}
		e.acked = Value{}
		return true
	}
	if e.value.Equal(e.acked) {
		return false
	}
	e.acked = e.value
	return true
}

// Dispatch offers an inbound message to the entity and reports whether it
// was consumed. While flushActive is set only Internal entities consume.
// An accepted message on a Control entity is persisted and echoed to the
// outbound topic.
func (e *Entity) Dispatch(topic, payload string, flushActive bool) bool {
	if e.spec.In == "" || !e.spec.Behavior.consumesInbound() {
		return false
	}
	if flushActive && e.spec.Behavior != Internal {
		return false
	}
	if topic != e.spec.In {
		return false
	}

	e.value = e.parse(payload)
	if e.spec.Behavior.persisted() {
		e.save(e.value.String())
		e.publish(e.value.String())
	}
	return true
}

// PublishValue republishes the current value. Only Control entities
// publish; the hub already owns the state of the other kinds.
func (e *Entity) PublishValue() {
	if e.spec.Behavior == Control {
		e.publish(e.value.String())
	}
}

// Reset removes the persisted value and clears the in-memory one. The next
// Init falls back to the default.
func (e *Entity) Reset() {
	if ns, err := e.env.store.Begin(e.env.namespace, false); err == nil {
		if err := ns.Remove(e.key); err != nil {
			e.env.logger.Warn("removing persisted value failed", "entity", e.spec.Name, "key", e.key, "error", err)
		}
		ns.End() //nolint:errcheck // handle release only
	} else {
		e.env.logger.Warn("opening preference namespace failed", "entity", e.spec.Name, "error", err)
	}
	e.value = Value{}
	e.acked = Value{}
}

// Value returns the current value.
func (e *Entity) Value() Value { return e.value }

// Read returns the current value in wire form.
func (e *Entity) Read() string { return e.value.String() }

// ReadInt returns the current value as an integer.
func (e *Entity) ReadInt() int64 { return e.value.Int() }

// ReadFloat returns the current value as a float.
func (e *Entity) ReadFloat() float64 { return e.value.Float() }

// ReadBool reports whether the current value reads as true.
func (e *Entity) ReadBool() bool { return e.value.Bool() }

// Snapshot is a read-only copy of an entity for status output.
type Snapshot struct {
	Name        string `json:"name"`
	Behavior    string `json:"behavior"`
	Out         string `json:"out,omitempty"`
	In          string `json:"in,omitempty"`
	Value       string `json:"value"`
	Key         string `json:"key,omitempty"`
	Initialized bool   `json:"initialized"`
}

// Snapshot copies the entity's current state.
func (e *Entity) Snapshot() Snapshot {
	s := Snapshot{
		Name:        e.spec.Name,
		Behavior:    e.spec.Behavior.String(),
		Out:         e.spec.Out,
		In:          e.spec.In,
		Value:       e.value.String(),
		Initialized: e.initialized,
	}
	if e.spec.Behavior.persisted() {
		s.Key = e.key
	}
	return s
}

func (e *Entity) parse(s string) Value {
	return normalize(s, e.decimals, e.spec.Resolution != "")
}

func (e *Entity) publish(payload string) {
	if e.spec.Out == "" || e.env.publisher == nil {
		return
	}
	if err := e.env.publisher.Publish(e.spec.Out, payload, e.logWrites); err != nil {
		e.env.logger.Debug("entity publish skipped",
			"entity", e.spec.Name,
			"topic", e.spec.Out,
			"error", err,
		)
	}
}

func (e *Entity) load() string {
	ns, err := e.env.store.Begin(e.env.namespace, true)
	if err != nil {
		e.env.logger.Warn("opening preference namespace failed", "entity", e.spec.Name, "error", err)
		return ""
	}
	defer ns.End() //nolint:errcheck // handle release only
	return ns.GetString(e.key, "")
}

func (e *Entity) save(value string) {
	ns, err := e.env.store.Begin(e.env.namespace, false)
	if err != nil {
		e.env.logger.Warn("opening preference namespace failed", "entity", e.spec.Name, "error", err)
		return
	}
	defer ns.End() //nolint:errcheck // handle release only
	if err := ns.PutString(e.key, value); err != nil {
		e.env.logger.Warn("persisting entity value failed",
			"entity", e.spec.Name,
			"key", e.key,
			"error", err,
		)
	}
}

// shortenKey keeps names up to maxKeyLen as they are. Longer names keep
// their last maxKeyLen-1 bytes plus one checksum digit: the sum of all
// byte values modulo 10.
func shortenKey(name string) string {
	if len(name) <= maxKeyLen {
		return name
	}
	sum := 0
	for i := 0; i < len(name); i++ {
		sum += int(name[i])
	}
	return name[len(name)-(maxKeyLen-1):] + strconv.Itoa(sum%10)
}
