// Package influxdb provides optional InfluxDB telemetry for the node.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, non-blocking batched writes and health monitoring.
//
// # Purpose
//
// The node records its own connectivity history:
//   - Link transitions (node_link)
//   - Broker session transitions (node_session)
//   - Connection sequence stage and readiness (node_sequence)
//   - Entity values as they change (node_entity)
//
// Every point carries device_id and boot_id tags.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Device.ID, bootID)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteSequence("ready", true, true)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Write errors are delivered asynchronously through SetOnError.
// Connection and health check errors are returned directly.
package influxdb
