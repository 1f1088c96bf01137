// Package sessiontest provides an in-memory session.Transport for tests.
package sessiontest

import (
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/session"
)

// Publication is one recorded outbound message.
type Publication struct {
	Topic    string
	Payload  string
	QoS      byte
	Retained bool
}

// Attempt is a manually completed session.Attempt.
type Attempt struct {
	mu   sync.Mutex
	done bool
	err  error
}

// Done implements session.Attempt.
func (a *Attempt) Done() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done
}

// Err implements session.Attempt.
func (a *Attempt) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Complete finishes the attempt with err.
func (a *Attempt) Complete(err error) {
	a.mu.Lock()
	a.done = true
	a.err = err
	a.mu.Unlock()
}

// Transport records every call and lets tests drive connection state and
// inbound traffic.
type Transport struct {
	mu sync.Mutex

	// ConnectErr is the result of synchronous Connect calls.
	ConnectErr error

	// Async makes Connect return a pending Attempt completed by CompleteConnect.
	Async bool

	// AsyncSubscribe makes Subscribe return pending Attempts.
	AsyncSubscribe bool

	// SubscribeErr fails Subscribe for the listed topics.
	SubscribeErr map[string]error

	options       []session.Options
	credentials   []session.Credentials
	connected     bool
	pending       *Attempt
	subscriptions []string
	subAttempts   []*Attempt
	published     []Publication
	flushes       []time.Duration
	disconnects   int
	inbound       chan session.Message
}

// New returns a disconnected Transport with an inbound queue of size 64.
func New() *Transport {
	return &Transport{
		SubscribeErr: make(map[string]error),
		inbound:      make(chan session.Message, 64),
	}
}

// Configure implements session.Transport.
func (t *Transport) Configure(opts session.Options) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.options = append(t.options, opts)
	return nil
}

// Connect implements session.Transport.
func (t *Transport) Connect(creds session.Credentials) session.Attempt {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.credentials = append(t.credentials, creds)

	if t.Async {
		t.pending = &Attempt{}
		return t.pending
	}
	if t.ConnectErr != nil {
		return session.Failed(t.ConnectErr)
	}
	t.connected = true
	return session.Succeeded()
}

// CompleteConnect finishes the pending asynchronous Connect.
func (t *Transport) CompleteConnect(err error) {
	t.mu.Lock()
	p := t.pending
	t.pending = nil
	if err == nil {
		t.connected = true
	}
	t.mu.Unlock()
	if p != nil {
		p.Complete(err)
	}
}

// IsConnected implements session.Transport.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// SetConnected forces the connection state, simulating a drop or a
// connection established out of band.
func (t *Transport) SetConnected(v bool) {
	t.mu.Lock()
	t.connected = v
	t.mu.Unlock()
}

// Disconnect implements session.Transport.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	t.connected = false
	t.disconnects++
	t.mu.Unlock()
}

// Subscribe implements session.Transport.
func (t *Transport) Subscribe(topic string, _ byte) session.Attempt {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscriptions = append(t.subscriptions, topic)
	if t.AsyncSubscribe {
		a := &Attempt{}
		t.subAttempts = append(t.subAttempts, a)
		return a
	}
	return session.Failed(t.SubscribeErr[topic])
}

// CompleteSubscriptions finishes every pending asynchronous Subscribe.
func (t *Transport) CompleteSubscriptions() {
	t.mu.Lock()
	pending := t.subAttempts
	t.subAttempts = nil
	errs := t.SubscribeErr
	subs := t.subscriptions
	t.mu.Unlock()

	offset := len(subs) - len(pending)
	for i, a := range pending {
		a.Complete(errs[subs[offset+i]])
	}
}

// Publish implements session.Transport.
func (t *Transport) Publish(topic string, payload []byte, qos byte, retained bool) session.Attempt {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return session.Failed(session.ErrNotConnected)
	}
	t.published = append(t.published, Publication{
		Topic:    topic,
		Payload:  string(payload),
		QoS:      qos,
		Retained: retained,
	})
	return session.Succeeded()
}

// Inbound implements session.Transport.
func (t *Transport) Inbound() <-chan session.Message {
	return t.inbound
}

// Flush implements session.Transport.
func (t *Transport) Flush(d time.Duration) {
	t.mu.Lock()
	t.flushes = append(t.flushes, d)
	t.mu.Unlock()
}

// Inject queues an inbound message as the broker would deliver it.
func (t *Transport) Inject(topic, payload string, retained bool) {
	t.inbound <- session.Message{Topic: topic, Payload: []byte(payload), Retained: retained}
}

// Options returns every Configure call.
func (t *Transport) Options() []session.Options {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]session.Options(nil), t.options...)
}

// Credentials returns every Connect call.
func (t *Transport) Credentials() []session.Credentials {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]session.Credentials(nil), t.credentials...)
}

// Subscriptions returns every subscribed topic in call order.
func (t *Transport) Subscriptions() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.subscriptions...)
}

// Published returns every recorded publication.
func (t *Transport) Published() []Publication {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Publication(nil), t.published...)
}

// PublishedTo returns the publications on topic.
func (t *Transport) PublishedTo(topic string) []Publication {
	var out []Publication
	for _, p := range t.Published() {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// Flushes returns the durations passed to Flush.
func (t *Transport) Flushes() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.flushes...)
}

// Disconnects returns how many times Disconnect was called.
func (t *Transport) Disconnects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disconnects
}

// Reset forgets recorded publications and subscriptions.
func (t *Transport) Reset() {
	t.mu.Lock()
	t.published = nil
	t.subscriptions = nil
	t.subAttempts = nil
	t.mu.Unlock()
}

// Link is a settable session.LinkStatus.
type Link struct {
	mu sync.Mutex
	up bool
}

// Attached implements session.LinkStatus.
func (l *Link) Attached() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.up
}

// Set changes the reported link state.
func (l *Link) Set(up bool) {
	l.mu.Lock()
	l.up = up
	l.mu.Unlock()
}
