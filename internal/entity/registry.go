package entity

import (
	"fmt"

	"github.com/nerrad567/gray-logic-node/internal/prefs"
)

// Logger is the logging interface used by entities and the Registry.
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

// Option configures a Registry.
type Option func(*Registry)

// WithNamespace overrides the persistence namespace.
func WithNamespace(ns string) Option {
	return func(r *Registry) {
		if ns != "" {
			r.env.namespace = ns
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.env.logger = l
		}
	}
}

// WithPublisher sets the outbound publisher.
func WithPublisher(p Publisher) Option {
	return func(r *Registry) { r.env.publisher = p }
}

// WithTopicIndex makes Dispatch look entities up by inbound topic instead
// of scanning. The consumer chosen is the same either way.
func WithTopicIndex() Option {
	return func(r *Registry) { r.byTopic = make(map[string][]*Entity) }
}

// Registry is the ordered set of entities built from the entity table.
type Registry struct {
	entities []*Entity
	byName   map[string]*Entity
	byTopic  map[string][]*Entity
	env      *env
}

// NewRegistry creates an empty registry persisting through store.
// A nil store keeps values in memory only.
func NewRegistry(store prefs.Store, opts ...Option) *Registry {
	if store == nil {
		store = prefs.NewMemory()
	}
	r := &Registry{
		byName: make(map[string]*Entity),
		env: &env{
			store:     store,
			namespace: DefaultNamespace,
			logger:    noopLogger{},
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetPublisher replaces the outbound publisher for every entity.
func (r *Registry) SetPublisher(p Publisher) { r.env.publisher = p }

// Register adds one entity. Registration order is dispatch order.
func (r *Registry) Register(spec Spec) (*Entity, error) {
	if spec.Name == "" {
		return nil, ErrEmptyName
	}
	if spec.Behavior < Control || spec.Behavior > Internal {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBehavior, int(spec.Behavior))
	}
	if _, exists := r.byName[spec.Name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateEntity, spec.Name)
	}

	e := newEntity(spec, r.env)
	r.entities = append(r.entities, e)
	r.byName[spec.Name] = e
	if r.byTopic != nil && spec.In != "" {
		r.byTopic[spec.In] = append(r.byTopic[spec.In], e)
	}

	r.env.logger.Debug("entity registered",
		"entity", spec.Name,
		"behavior", spec.Behavior.String(),
		"key", e.key,
	)
	return e, nil
}

// Load registers every row of table. It stops at the first invalid row.
func (r *Registry) Load(table Table) error {
	for i, spec := range table.Entities {
		if _, err := r.Register(spec); err != nil {
			return fmt.Errorf("entity table row %d: %w", i, err)
		}
	}
	r.logSummary()
	return nil
}

// Lookup returns the entity called name, or nil.
func (r *Registry) Lookup(name string) *Entity {
	return r.byName[name]
}

// Entities returns the entities in registration order.
func (r *Registry) Entities() []*Entity {
	out := make([]*Entity, len(r.entities))
	copy(out, r.entities)
	return out
}

// Len returns the number of entities.
func (r *Registry) Len() int { return len(r.entities) }

// Dispatch offers an inbound message to each entity in registration order
// until one consumes it. Unmatched topics are ignored.
func (r *Registry) Dispatch(topic, payload string, flushActive bool) bool {
	candidates := r.entities
	if r.byTopic != nil {
		candidates = r.byTopic[topic]
	}
	for _, e := range candidates {
		if e.Dispatch(topic, payload, flushActive) {
			return true
		}
	}
	if flushActive {
		r.env.logger.Debug("inbound message held during flush", "topic", topic, "payload", payload)
	}
	return false
}

// InboundTopics lists the distinct inbound topics of entities that can
// consume messages, in registration order.
func (r *Registry) InboundTopics() []string {
	seen := make(map[string]bool)
	var topics []string
	for _, e := range r.entities {
		if e.spec.In == "" || !e.spec.Behavior.consumesInbound() || seen[e.spec.In] {
			continue
		}
		seen[e.spec.In] = true
		topics = append(topics, e.spec.In)
	}
	return topics
}

// InitAll initialises every entity.
func (r *Registry) InitAll() {
	for _, e := range r.entities {
		e.Init()
	}
}

// PublishAll republishes every Control value.
func (r *Registry) PublishAll() {
	for _, e := range r.entities {
		e.PublishValue()
	}
}

// ResetAll clears the persisted value of every Control entity.
func (r *Registry) ResetAll() {
	for _, e := range r.entities {
		if e.spec.Behavior.persisted() {
			e.Reset()
		}
	}
}

// Snapshot copies every entity's state in registration order.
func (r *Registry) Snapshot() []Snapshot {
	out := make([]Snapshot, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, e.Snapshot())
	}
	return out
}

func (r *Registry) logSummary() {
	counts := make(map[Behavior]int)
	for _, e := range r.entities {
		counts[e.spec.Behavior]++
	}
	r.env.logger.Info("entity table loaded",
		"entities", len(r.entities),
		"control", counts[Control],
		"indicator", counts[Indicator],
		"trigger", counts[Trigger],
		"internal", counts[Internal],
		"inbound_topics", len(r.InboundTopics()),
	)
}
