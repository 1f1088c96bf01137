package mqtt

import "errors"

// Transport errors. Attempts report them through Err; match with errors.Is.
var (
	// ErrNotConfigured is returned by Connect before Configure succeeded.
	ErrNotConfigured = errors.New("mqtt: transport not configured")

	// ErrInvalidBroker is returned by Configure for an empty host or a port
	// outside 1..65535.
	ErrInvalidBroker = errors.New("mqtt: invalid broker address")

	// ErrNotConnected is reported by Subscribe and Publish while the
	// broker connection is down.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrInvalidQoS is reported for a QoS other than 0, 1 or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level")

	// ErrInvalidTopic is reported for an empty topic or one carrying
	// wildcards where a concrete topic is required.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrPublishFailed wraps a broker-side publish failure.
	ErrPublishFailed = errors.New("mqtt: publish failed")
)
