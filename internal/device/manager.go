package device

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lumen-hub/lumen-core/internal/driver"
)

// Default retry supervisor settings, used when Config leaves them zero.
const (
	DefaultRetryAttempts = 15
	DefaultRetryInterval = 5 * time.Second
)

// policyShutdownTimeout bounds the forced shutdown issued when a device's
// type is disabled after it initialized.
const policyShutdownTimeout = 5 * time.Second

// Config holds the manager's coordination settings.
// These map to the devices section of config.yaml.
type Config struct {
	// RetryAttempts is the maximum number of retry rounds the
	// initialization supervisor runs after a partial startup failure.
	RetryAttempts int

	// RetryInterval is the fixed pause between retry rounds.
	RetryInterval time.Duration
}

// Manager owns the ordered collection of device handles and is the single
// entry point callers use to push frames, query status, and control
// lifecycle. Policy enforcement (the disabled-device set) happens here, on
// every dispatch and every initialization attempt.
//
// The handle list is immutable after construction: handles are never
// removed, and a device that goes offline simply reports uninitialized.
type Manager struct {
	cfg       Config
	policy    Policy
	logger    Logger
	telemetry Telemetry
	events    EventSink

	handles []*Handle

	// lifecycle bounds every device call and the retry loop; stop cancels
	// it at Close.
	lifecycle context.Context
	stop      context.CancelFunc
	workers   sync.WaitGroup

	// Retry supervisor state, mutated only by the supervisor. Guarded by
	// retryMu with minimal critical sections.
	retryMu        sync.Mutex
	retryRemaining int
	retryActive    bool
	initPassDone   bool

	anyInit atomic.Bool
	closed  atomic.Bool

	obsMu     sync.Mutex
	observers []func()
}

// NewManager creates a manager over the given drivers. One handle (driver
// plus coalescer) is created per driver; the set is fixed for the process
// lifetime.
//
// policy may be nil, in which case no device type is ever disabled.
// SetLogger, SetTelemetry, and SetEventSink must be called before the first
// Initialize or UpdateDevices call.
func NewManager(cfg Config, policy Policy, drivers []driver.Driver) *Manager {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = DefaultRetryAttempts
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if policy == nil {
		policy = PolicyFunc(func(string) bool { return false })
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		cfg:            cfg,
		policy:         policy,
		logger:         noopLogger{},
		telemetry:      noopTelemetry{},
		events:         noopEventSink{},
		lifecycle:      ctx,
		stop:           cancel,
		retryRemaining: cfg.RetryAttempts,
	}

	m.handles = make([]*Handle, 0, len(drivers))
	for _, drv := range drivers {
		h := &Handle{drv: drv}
		h.coa = newCoalescer(ctx, &m.workers, drv, m.logger, m.telemetry)
		m.handles = append(m.handles, h)
	}

	return m
}

// SetLogger sets the logger for the manager and its coalescers.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
	for _, h := range m.handles {
		h.coa.logger = logger
	}
}

// SetTelemetry sets the telemetry recorder for the manager and its
// coalescers.
func (m *Manager) SetTelemetry(t Telemetry) {
	m.telemetry = t
	for _, h := range m.handles {
		h.coa.telemetry = t
	}
}

// SetEventSink sets the sink for device lifecycle events.
func (m *Manager) SetEventSink(s EventSink) {
	m.events = s
}

// OnDevicesChanged registers an observer for the devices-changed
// notification. The notification carries no payload; observers re-query
// state. It fires after any initialization pass and after any retry round
// that brought at least one device online.
func (m *Manager) OnDevicesChanged(fn func()) {
	m.obsMu.Lock()
	m.observers = append(m.observers, fn)
	m.obsMu.Unlock()
}

// notifyDevicesChanged invokes all registered observers.
func (m *Manager) notifyDevicesChanged() {
	m.obsMu.Lock()
	observers := make([]func(), len(m.observers))
	copy(observers, m.observers)
	m.obsMu.Unlock()

	for _, fn := range observers {
		fn()
	}
}

// UpdateDevices fans a frame out to every initialized device's coalescer.
//
// The disabled policy is re-checked per device on every call: a device that
// initialized and whose type was disabled afterwards is shut down on the
// spot instead of receiving the frame. Returns immediately; device I/O
// happens on the coalescer workers.
func (m *Manager) UpdateDevices(frame driver.Frame, forced bool) {
	if m.closed.Load() {
		return
	}

	for _, h := range m.handles {
		if !h.drv.IsInitialized() {
			continue
		}

		if m.policy.Disabled(h.drv.Type()) {
			// Policy drift: initialized but now disabled. Drop the device's
			// mailbox and cancel any in-flight update first, so a frame
			// submitted before the transition cannot land after the
			// shutdown. The shutdown gets its own bounded context; it must
			// not inherit a cancellation from the update path.
			m.logger.Info("device type disabled, shutting down",
				"device", h.drv.Name(),
				"type", h.drv.Type(),
			)
			h.coa.purge()

			ctx, cancel := context.WithTimeout(context.Background(), policyShutdownTimeout)
			if err := h.drv.Shutdown(ctx); err != nil {
				m.logger.Warn("policy shutdown failed",
					"device", h.drv.Name(),
					"error", err,
				)
			}
			cancel()
			m.events.Record(h.drv.Name(), "shutdown", "device type disabled by policy")
			continue
		}

		h.coa.submit(frame, forced)
	}
}

// Shutdown takes every initialized device offline. Idempotent: devices
// already shut down are skipped. Clears the any-initialized flag.
func (m *Manager) Shutdown(ctx context.Context) {
	for _, h := range m.handles {
		if !h.drv.IsInitialized() {
			continue
		}
		if err := h.drv.Shutdown(ctx); err != nil {
			m.logger.Warn("device shutdown failed",
				"device", h.drv.Name(),
				"error", err,
			)
			continue
		}
		m.logger.Info("device shut down", "device", h.drv.Name())
		m.events.Record(h.drv.Name(), "shutdown", "")
	}
	m.anyInit.Store(false)
}

// ResetDevices clears hardware state on every initialized device without
// tearing down connections.
func (m *Manager) ResetDevices(ctx context.Context) {
	for _, h := range m.handles {
		if !h.drv.IsInitialized() {
			continue
		}
		if err := h.drv.Reset(ctx); err != nil {
			m.logger.Warn("device reset failed",
				"device", h.drv.Name(),
				"error", err,
			)
		}
	}
}

// GetInitializedDevices returns a snapshot of the drivers currently
// reporting initialized. The slice is a copy; it does not stay live.
func (m *Manager) GetInitializedDevices() []driver.Driver {
	var out []driver.Driver
	for _, h := range m.handles {
		if h.drv.IsInitialized() {
			out = append(out, h.drv)
		}
	}
	return out
}

// AnyInitialized reports whether any device has initialized and not been
// shut down since.
func (m *Manager) AnyInitialized() bool {
	return m.anyInit.Load()
}

// RemainingRetryAttempts returns how many retry rounds the supervisor has
// left. Zero with uninitialized devices present means retries exhausted.
func (m *Manager) RemainingRetryAttempts() int {
	m.retryMu.Lock()
	defer m.retryMu.Unlock()
	return m.retryRemaining
}

// Statuses returns a point-in-time snapshot of every handle.
func (m *Manager) Statuses() []Status {
	out := make([]Status, 0, len(m.handles))
	for _, h := range m.handles {
		out = append(out, Status{
			Name:        h.drv.Name(),
			Type:        h.drv.Type(),
			Details:     h.drv.Details(),
			Initialized: h.drv.IsInitialized(),
			Disabled:    m.policy.Disabled(h.drv.Type()),
			Coalesced:   h.coa.coalescedCount(),
			Applied:     h.coa.appliedCount(),
		})
	}
	return out
}

// StatusReport returns a concatenated human-readable status line per device,
// for operational visibility. Not parsed by other core logic.
func (m *Manager) StatusReport() string {
	var b strings.Builder
	for _, s := range m.Statuses() {
		state := "uninitialized"
		switch {
		case s.Disabled:
			state = "disabled"
		case s.Initialized:
			state = "initialized"
		}
		fmt.Fprintf(&b, "%s (%s): %s — %s\n", s.Name, s.Type, state, s.Details)
	}
	return b.String()
}

// RegisteredVariables aggregates the user-configurable variables of every
// driver for the surrounding configuration registry.
func (m *Manager) RegisteredVariables() []driver.Variable {
	var out []driver.Variable
	for _, h := range m.handles {
		out = append(out, h.drv.Variables()...)
	}
	return out
}

// Close tears the manager down: it stops the retry loop, cancels in-flight
// device calls, and waits up to grace for the coalescer workers to drain.
// The join is best-effort — a driver stuck in an update call is abandoned
// rather than force-killed.
func (m *Manager) Close(grace time.Duration) {
	if !m.closed.CompareAndSwap(false, true) {
		return
	}

	m.stop()
	for _, h := range m.handles {
		h.coa.close()
	}

	done := make(chan struct{})
	go func() {
		m.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Debug("device workers drained")
	case <-time.After(grace):
		m.logger.Warn("teardown grace period elapsed, abandoning device workers",
			"grace", grace,
		)
	}
}
