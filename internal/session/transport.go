package session

import "time"

// Message is one inbound broker message.
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// Availability describes the birth and last-will messages of the session.
type Availability struct {
	Topic   string
	Online  string
	Offline string
}

// Options is the one-shot session configuration.
type Options struct {
	Host         string
	Port         int
	TLS          bool
	KeepAlive    time.Duration
	CleanSession bool
	Availability Availability
}

// Credentials identify the client on Connect.
type Credentials struct {
	ClientID string
	Username string
	Password string
}

// Attempt is an asynchronous broker operation.
type Attempt interface {
	// Done reports whether the operation has completed. It never blocks.
	Done() bool

	// Err returns the outcome once Done is true.
	Err() error
}

// Transport is the broker client driven by Guard. All methods except Flush
// must return without waiting on the network.
type Transport interface {
	Configure(opts Options) error
	Connect(creds Credentials) Attempt
	IsConnected() bool
	Disconnect()
	Subscribe(topic string, qos byte) Attempt
	Publish(topic string, payload []byte, qos byte, retained bool) Attempt
	Inbound() <-chan Message

	// Flush waits up to d for outstanding publish acknowledgements.
	Flush(d time.Duration)
}

// completed is an Attempt that finished synchronously.
type completed struct{ err error }

func (completed) Done() bool   { return true }
func (c completed) Err() error { return c.err }

// Failed returns an already completed Attempt carrying err.
func Failed(err error) Attempt { return completed{err: err} }

// Succeeded returns an already completed successful Attempt.
func Succeeded() Attempt { return completed{} }
