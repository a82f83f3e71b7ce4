package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSourceMetric writes a single numeric measurement for an audio source.
//
// This is the primary method for recording bridge telemetry: client volume
// percents and group volumes extracted from published change events.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - sourceID: Identifier of the originating device or group
//   - measurement: The metric name (e.g., "volume_percent", "latency_ms")
//   - value: The numeric value to record
//
// Example:
//
//	client.WriteSourceMetric("living-room", "volume_percent", 42)
func (c *Client) WriteSourceMetric(sourceID string, measurement string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"source_metrics",
		map[string]string{
			"source_id":   sourceID,
			"measurement": measurement,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteEventCount records that a change event of the given kind was published.
//
// Used for monitoring notification volume per source and event kind.
//
// Parameters:
//   - sourceID: Identifier of the originating device or group
//   - kind: The change event kind (e.g., "group_changed")
func (c *Client) WriteEventCount(sourceID string, kind string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"bridge_events",
		map[string]string{
			"source_id": sourceID,
			"kind":      kind,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
