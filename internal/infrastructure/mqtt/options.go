package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-node/internal/session"
)

// Connection constants.
const (
	// defaultConnectTimeout bounds one asynchronous connect attempt.
	defaultConnectTimeout = 10 * time.Second

	// defaultDisconnectQuiesce is the time allowed for pending work on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultWriteTimeout bounds a blocked network write.
	defaultWriteTimeout = 5 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// maxPayloadSize rejects payloads the broker would refuse anyway.
	maxPayloadSize = 1 << 20

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// buildClientOptions creates paho options from the session options.
//
// Reconnection is disabled: the session guard owns
// every retry and its backoff, so paho must never reconnect behind it.
func buildClientOptions(o session.Options) (*pahomqtt.ClientOptions, error) {
	if o.Host == "" || o.Port < 1 || o.Port > 65535 {
		return nil, fmt.Errorf("%w: %q:%d", ErrInvalidBroker, o.Host, o.Port)
	}

	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if o.TLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, o.Host, o.Port))

	opts.SetCleanSession(o.CleanSession)
	opts.SetKeepAlive(o.KeepAlive)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetWriteTimeout(defaultWriteTimeout)
	opts.SetOrderMatters(true)

	configureLWT(opts, o.Availability)
	return opts, nil
}

// configureLWT registers the offline availability message as the will, so
// the hub marks the device unavailable when the session dies uncleanly.
//
// QoS: 1, Retained: true
func configureLWT(opts *pahomqtt.ClientOptions, a session.Availability) {
	if a.Topic == "" {
		return
	}
	opts.SetWill(a.Topic, a.Offline, 1, true)
}

// applyCredentials copies the per-connect identity onto the options.
func applyCredentials(opts *pahomqtt.ClientOptions, c session.Credentials) {
	opts.SetClientID(c.ClientID)
	opts.SetUsername(c.Username)
	opts.SetPassword(c.Password)
}
