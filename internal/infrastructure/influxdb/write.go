package influxdb

import (
	"maps"
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the node.
const (
	MeasurementLink     = "node_link"
	MeasurementSession  = "node_session"
	MeasurementSequence = "node_sequence"
	MeasurementEntity   = "node_entity"
)

// WriteLinkState records a network link transition.
//
// Parameters:
//   - phase: Link phase name (e.g., "attached", "scanning")
//   - attempts: Failed attach attempts since the last success
//   - rssi: Signal strength in dBm, or 0 when unknown
func (c *Client) WriteLinkState(phase string, attempts int, rssi int) {
	fields := map[string]interface{}{
		"attempts": attempts,
	}
	if rssi != 0 {
		fields["rssi_dbm"] = rssi
	}
	c.write(MeasurementLink, map[string]string{"phase": phase}, fields)
}

// WriteSessionState records a broker session transition.
//
// Parameters:
//   - state: Session state name (e.g., "attached", "connecting")
//   - attempts: Failed connect attempts since the last success
func (c *Client) WriteSessionState(state string, attempts int) {
	c.write(MeasurementSession, map[string]string{"state": state}, map[string]interface{}{
		"attempts": attempts,
	})
}

// WriteSequence records the connection sequence stage and readiness flags.
//
// Example:
//
//	client.WriteSequence("ready", true, false)
func (c *Client) WriteSequence(stage string, coarse, fine bool) {
	c.write(MeasurementSequence, map[string]string{"stage": stage}, map[string]interface{}{
		"coarse_ready": coarse,
		"fine_ready":   fine,
	})
}

// WriteEntityValue records the wire value of an entity after a write or an
// inbound update. Numeric payloads land in the "value" field, everything else
// in "text".
//
// Parameters:
//   - entity: Entity name
//   - payload: Wire form of the value
func (c *Client) WriteEntityValue(entity string, payload string) {
	fields := make(map[string]interface{}, 1)
	if f, err := strconv.ParseFloat(payload, 64); err == nil {
		fields["value"] = f
	} else {
		fields["text"] = payload
	}
	c.write(MeasurementEntity, map[string]string{"entity": entity}, fields)
}

// WritePoint writes a custom point with full control over tags and fields.
// The device_id and boot_id tags are added unless tags already carry them.
//
// Example:
//
//	client.WritePoint("node_runtime",
//	    map[string]string{"loop": "main"},
//	    map[string]interface{}{"overrun_ms": 4})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	point := write.NewPoint(measurement, c.mergeTags(tags), fields, timestamp)
	c.writer.WritePoint(point)
}

func (c *Client) write(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

func (c *Client) mergeTags(tags map[string]string) map[string]string {
	out := maps.Clone(c.tags)
	maps.Copy(out, tags)
	return out
}
