package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lumen-hub/lumen-core/internal/driver"
)

// pendingFrame is the single-slot mailbox payload: the newest submitted
// frame and its forced flag. Insertion always overwrites, never appends.
type pendingFrame struct {
	frame  driver.Frame
	forced bool
}

// coalescer guarantees at-most-one in-flight update per device while always
// converging on the most recently submitted frame.
//
// One coalescer exists per handle. Its worker goroutine is started lazily on
// the first submission after idle and exits when the mailbox is drained, so
// an idle device costs nothing.
type coalescer struct {
	drv       driver.Driver
	logger    Logger
	telemetry Telemetry

	// base is the manager's lifecycle context; every device call derives
	// its cancellation handle from it.
	base context.Context

	// wg is the manager's worker group, used for the bounded join at
	// teardown.
	wg *sync.WaitGroup

	mu      sync.Mutex
	pending *pendingFrame      // nil = consumed
	gen     uint64             // submission generation, for tracing
	running bool               // worker goroutine active
	cancel  context.CancelFunc // cancels the in-flight update; nil between calls
	closed  bool

	applied   atomic.Uint64
	coalesced atomic.Uint64
}

func newCoalescer(base context.Context, wg *sync.WaitGroup, drv driver.Driver, logger Logger, telemetry Telemetry) *coalescer {
	return &coalescer{
		drv:       drv,
		logger:    logger,
		telemetry: telemetry,
		base:      base,
		wg:        wg,
	}
}

// submit stores (frame, forced) in the mailbox, overwriting any unconsumed
// value, and requests cancellation of the update currently in flight. If the
// worker is idle it is started; if busy, it is guaranteed to observe the new
// value once the current call returns. Never blocks on device I/O.
func (c *coalescer) submit(frame driver.Frame, forced bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	overwrote := c.pending != nil
	c.pending = &pendingFrame{frame: frame, forced: forced}
	c.gen++

	// Supersede the in-flight call. Cancellation is advisory: the driver
	// polls the context, and the worker does not start the next call until
	// the current one has returned either way.
	if c.cancel != nil {
		c.cancel()
	}

	start := !c.running
	c.running = true
	if start {
		c.wg.Add(1)
	}
	c.mu.Unlock()

	if overwrote {
		c.coalesced.Add(1)
		c.telemetry.WriteDeviceMetric(c.drv.Name(), "frames_coalesced", 1)
	}
	if start {
		go c.worker()
	}
}

// worker is the single sequential execution context for this device. It
// repeatedly consumes the mailbox and applies frames until the mailbox is
// empty, then exits. Between iterations there is no overlap: the device
// never receives two concurrent update calls.
func (c *coalescer) worker() {
	defer c.wg.Done()

	for {
		c.mu.Lock()
		p := c.pending
		if p == nil || c.closed {
			c.running = false
			c.mu.Unlock()
			return
		}
		c.pending = nil

		ctx, cancel := context.WithCancel(c.base)
		c.cancel = cancel
		c.mu.Unlock()

		err := c.apply(ctx, p.frame, p.forced)
		cancel()

		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()

		switch {
		case err == nil:
			c.applied.Add(1)
			c.telemetry.WriteDeviceMetric(c.drv.Name(), "frames_applied", 1)
		case errors.Is(err, context.Canceled):
			// Superseded by a newer frame or by teardown; the next
			// iteration picks up whatever is pending.
			c.logger.Debug("device update superseded",
				"device", c.drv.Name(),
				"generation", c.generation(),
			)
		default:
			// A fault never terminates the worker; log it and proceed to
			// the next pending check.
			c.logger.Warn("device update failed",
				"device", c.drv.Name(),
				"error", err,
			)
			c.telemetry.WriteDeviceMetric(c.drv.Name(), "update_faults", 1)
		}
	}
}

// apply invokes the driver's update with panic containment. A panicking
// driver is reported as an ErrUpdatePanic fault instead of killing the
// worker.
func (c *coalescer) apply(ctx context.Context, frame driver.Frame, forced bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrUpdatePanic, r)
		}
	}()
	return c.drv.Update(ctx, frame, forced)
}

// purge drops any pending frame and cancels the in-flight call without
// closing the coalescer. Used when the manager forces a device offline
// (policy drift) so a frame submitted before the transition cannot land
// after the shutdown.
func (c *coalescer) purge() {
	c.mu.Lock()
	c.pending = nil
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
}

// close drops any pending frame, cancels the in-flight call, and prevents
// further submissions. The worker exits once the current device call
// returns; the manager's worker group provides the bounded join.
func (c *coalescer) close() {
	c.mu.Lock()
	c.closed = true
	c.pending = nil
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
}

func (c *coalescer) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// appliedCount returns how many frames this device has applied.
func (c *coalescer) appliedCount() uint64 { return c.applied.Load() }

// coalescedCount returns how many submitted frames were dropped because a
// newer one superseded them before the worker consumed the mailbox.
func (c *coalescer) coalescedCount() uint64 { return c.coalesced.Load() }
