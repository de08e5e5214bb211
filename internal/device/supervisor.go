package device

import (
	"context"
	"time"
)

// Initialize runs a one-shot initialization pass over all devices:
// already-initialized and policy-disabled devices are skipped, every other
// device gets one initialize call, and outcomes are logged per device.
//
// The pass is synchronous and sequential in handle order — device drivers
// may not be safe to initialize concurrently, and a deterministic startup
// order keeps logs legible. The caller is never blocked beyond the pass
// itself: if any device failed, recovery happens on a single background
// retry loop.
//
// Exactly one retry loop may be active; calling Initialize again while one
// runs records the failures but does not spawn a second loop. Initialization
// failures never propagate to the caller.
func (m *Manager) Initialize(ctx context.Context) {
	if m.closed.Load() {
		return
	}

	failed := 0
	for _, h := range m.handles {
		if h.drv.IsInitialized() {
			continue
		}
		if m.policy.Disabled(h.drv.Type()) {
			m.logger.Debug("skipping disabled device",
				"device", h.drv.Name(),
				"type", h.drv.Type(),
			)
			continue
		}
		if ok := m.initializeHandle(ctx, h); ok {
			m.anyInit.Store(true)
		} else {
			failed++
		}
	}

	// One notification per pass: observers refresh status rather than
	// diffing, so firing unconditionally is harmless and keeps callers
	// simple.
	m.notifyDevicesChanged()

	m.retryMu.Lock()
	m.initPassDone = true
	startRetry := failed > 0 && !m.retryActive
	if startRetry {
		m.retryActive = true
		m.retryRemaining = m.cfg.RetryAttempts
	}
	m.retryMu.Unlock()

	if startRetry {
		m.logger.Info("starting initialization retry loop",
			"failed_devices", failed,
			"attempts", m.cfg.RetryAttempts,
			"interval", m.cfg.RetryInterval,
		)
		go m.retryLoop(m.lifecycle)
	}
}

// InitializeOnce invokes Initialize only if no device has ever successfully
// initialized and a prior Initialize call has already completed — the guard
// keeps it from firing before the composition root finished constructing
// the manager. Idempotent; a no-op once any device is online.
func (m *Manager) InitializeOnce(ctx context.Context) {
	m.retryMu.Lock()
	passDone := m.initPassDone
	m.retryMu.Unlock()

	if !passDone || m.anyInit.Load() {
		return
	}
	m.Initialize(ctx)
}

// initializeHandle attempts one device initialization and reports success.
// Failures are logged and recorded, never returned.
func (m *Manager) initializeHandle(ctx context.Context, h *Handle) bool {
	if err := h.drv.Initialize(ctx); err != nil {
		m.logger.Warn("device initialization failed",
			"device", h.drv.Name(),
			"type", h.drv.Type(),
			"error", err,
		)
		m.events.Record(h.drv.Name(), "initialize_failed", err.Error())
		m.telemetry.WriteDeviceMetric(h.drv.Name(), "init_failures", 1)
		return false
	}

	m.logger.Info("device initialized",
		"device", h.drv.Name(),
		"type", h.drv.Type(),
		"details", h.drv.Details(),
	)
	m.events.Record(h.drv.Name(), "initialized", h.drv.Details())
	m.telemetry.WriteDeviceMetric(h.drv.Name(), "init_successes", 1)
	return true
}

// retryLoop re-attempts initialization of still-offline devices on a fixed
// interval for a bounded number of rounds. It terminates at the earlier of:
// the remaining-attempts counter reaching zero, a round in which zero
// devices were eligible for an attempt, or lifecycle cancellation.
//
// The counter decrements by exactly one per round regardless of outcome;
// exhaustion is silent and observable only through RemainingRetryAttempts.
func (m *Manager) retryLoop(ctx context.Context) {
	defer func() {
		m.retryMu.Lock()
		m.retryActive = false
		m.retryMu.Unlock()
	}()

	for {
		m.retryMu.Lock()
		remaining := m.retryRemaining
		m.retryMu.Unlock()
		if remaining <= 0 {
			m.logger.Info("initialization retries exhausted")
			return
		}

		attempted, succeeded := 0, 0
		for _, h := range m.handles {
			if ctx.Err() != nil {
				return
			}
			if h.drv.IsInitialized() || m.policy.Disabled(h.drv.Type()) {
				continue
			}
			attempted++
			if m.initializeHandle(ctx, h) {
				succeeded++
			}
		}

		m.retryMu.Lock()
		m.retryRemaining--
		remaining = m.retryRemaining
		m.retryMu.Unlock()
		m.telemetry.WriteDeviceMetric("supervisor", "retry_rounds", 1)

		if attempted == 0 {
			// Everything left is disabled or online; further rounds would
			// be wasted work.
			m.logger.Debug("no devices eligible for retry, stopping loop")
			return
		}

		if succeeded > 0 {
			m.anyInit.Store(true)
			m.notifyDevicesChanged()
		}

		m.logger.Debug("initialization retry round complete",
			"attempted", attempted,
			"succeeded", succeeded,
			"remaining_rounds", remaining,
		)

		if remaining <= 0 {
			m.logger.Info("initialization retries exhausted")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.cfg.RetryInterval):
		}
	}
}
