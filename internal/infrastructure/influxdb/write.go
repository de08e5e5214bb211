package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDeviceMetric writes a single device measurement to InfluxDB.
//
// This is the primary method for recording device telemetry data, and
// satisfies the coordination core's telemetry interface. The write is
// non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Unique identifier for the device (e.g., "desk-strip")
//   - measurement: The metric name (e.g., "coalesced_frames", "update_faults")
//   - value: The numeric value to record
//
// Example:
//
//	client.WriteDeviceMetric("desk-strip", "coalesced_frames", 12)
//	client.WriteDeviceMetric("matrix-wall", "update_faults", 1)
func (c *Client) WriteDeviceMetric(deviceID string, measurement string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_metrics",
		map[string]string{
			"device_id":   deviceID,
			"measurement": measurement,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteFrameRate writes a frame throughput measurement for one device.
//
// Parameters:
//   - deviceID: Device identifier
//   - appliedPerSecond: Frames actually pushed to hardware
//   - coalescedPerSecond: Frames discarded by the single-slot mailbox
func (c *Client) WriteFrameRate(deviceID string, appliedPerSecond, coalescedPerSecond float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"frame_rate",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"applied_per_second":   appliedPerSecond,
			"coalesced_per_second": coalescedPerSecond,
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
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "core-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
