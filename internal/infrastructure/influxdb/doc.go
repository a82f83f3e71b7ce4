// Package influxdb provides optional telemetry for the Snappy bridge.
//
// When enabled, numeric fields of published change events (volume levels,
// group volumes, latency) are written to InfluxDB as batched, non-blocking
// points. The bridge is fully functional with telemetry disabled; every
// write helper silently no-ops when the client is not connected.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without telemetry
//	}
//	client.WriteSourceMetric("living-room", "volume_percent", 42)
package influxdb
