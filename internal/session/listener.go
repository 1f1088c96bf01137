package session

// Handler consumes one inbound message on the loop goroutine.
type Handler func(Message)

// Listener is the subscription handle of one session. It can only be
// obtained from Listen, which installs the handler first.
type Listener struct {
	guard   *Guard
	epoch   uint64
	handler Handler
}

// Listen installs h for the current session and returns the handle used to
// subscribe.
func (g *Guard) Listen(h Handler) (*Listener, error) {
	if h == nil {
		return nil, ErrNoHandler
	}
	if !g.Attached() {
		return nil, ErrNotConnected
	}
	l := &Listener{guard: g, epoch: g.state.Epoch, handler: h}
	g.listener = l
	return l, nil
}

// Subscribe requests topic on the session the listener was created for.
func (l *Listener) Subscribe(topic string, qos byte) (Attempt, error) {
	g := l.guard
	if g.listener != l || g.state.Epoch != l.epoch {
		return nil, ErrStaleListener
	}
	if !g.Attached() {
		return nil, ErrNotConnected
	}
	return g.transport.Subscribe(topic, qos), nil
}

// Deliver drains the messages queued at entry to the installed handler and
// returns how many were delivered. Messages arriving with no handler are
// discarded.
func (g *Guard) Deliver() int {
	in := g.transport.Inbound()
	queued := len(in)
	n := 0
	for i := 0; i < queued; i++ {
		msg, ok := <-in
		if !ok {
			break
		}
		if g.listener == nil {
			g.logger.Debug("inbound message without handler dropped", "topic", msg.Topic)
			continue
		}
		g.listener.handler(msg)
		n++
	}
	return n
}
