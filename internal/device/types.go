package device

import (
	"github.com/lumen-hub/lumen-core/internal/driver"
)

// Logger defines the logging interface used by this package.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Telemetry receives operational counters from the coordination core.
// Implemented by the InfluxDB client; a no-op is used when telemetry is
// disabled. Implementations must be non-blocking.
type Telemetry interface {
	WriteDeviceMetric(deviceID, measurement string, value float64)
}

// noopTelemetry discards all metrics.
type noopTelemetry struct{}

func (noopTelemetry) WriteDeviceMetric(string, string, float64) {}

// Policy answers whether a device type is currently disabled. It is
// consulted on every dispatch and every initialization attempt, never
// cached by this package, so runtime policy changes take effect on the
// next call.
type Policy interface {
	Disabled(deviceType string) bool
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(deviceType string) bool

// Disabled implements Policy.
func (f PolicyFunc) Disabled(deviceType string) bool { return f(deviceType) }

// EventSink records device lifecycle events (initialization outcomes,
// shutdowns, policy-drift shutdowns) for operational history. Implemented
// by the history repository; recording failures must be swallowed by the
// implementation — the core never blocks on the sink.
type EventSink interface {
	Record(deviceName, event, detail string)
}

// noopEventSink discards all events.
type noopEventSink struct{}

func (noopEventSink) Record(string, string, string) {}

// Handle pairs exactly one driver with one coalescer. Handles are created
// at manager construction, live for the process lifetime, and are never
// removed individually.
type Handle struct {
	drv driver.Driver
	coa *coalescer
}

// Driver returns the handle's underlying driver.
func (h *Handle) Driver() driver.Driver { return h.drv }

// Status is a point-in-time description of one device, exposed for
// diagnostics and the API. It is a snapshot, not a live view.
type Status struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Details     string `json:"details"`
	Initialized bool   `json:"initialized"`
	Disabled    bool   `json:"disabled"`
	Coalesced   uint64 `json:"coalesced_frames"`
	Applied     uint64 `json:"applied_frames"`
}
