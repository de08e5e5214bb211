// Package virtual provides an in-memory Driver implementation.
//
// The virtual driver is used by lumend when no hardware binding is
// configured, and by tests that exercise the coordination core. It keeps the
// last applied frame and can be configured to fail its first N
// initialization attempts, which makes the retry supervisor observable in a
// development deployment.
package virtual

import (
	"context"
	"fmt"
	"sync"

	"github.com/lumen-hub/lumen-core/internal/driver"
)

// Config describes one virtual device.
type Config struct {
	// Type is the device type identity. Defaults to "virtual".
	Type string

	// Name is the human-readable device name.
	Name string

	// Zones is the number of color zones the device exposes.
	Zones int

	// FailInitAttempts makes the first N Initialize calls fail.
	// Used to exercise initialization retries.
	FailInitAttempts int
}

// Driver is a virtual lighting device.
type Driver struct {
	cfg Config

	mu          sync.Mutex
	initialized bool
	initCalls   int
	updateCalls int
	lastFrame   driver.Frame
	lastForced  bool
}

// New creates a virtual driver from cfg.
func New(cfg Config) *Driver {
	if cfg.Type == "" {
		cfg.Type = "virtual"
	}
	if cfg.Zones <= 0 {
		cfg.Zones = 1
	}
	return &Driver{cfg: cfg}
}

// Initialize brings the virtual device online. The first
// cfg.FailInitAttempts calls fail, after which it succeeds. Calling it while
// already initialized is a no-op.
func (d *Driver) Initialize(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil
	}

	d.initCalls++
	if d.initCalls <= d.cfg.FailInitAttempts {
		return fmt.Errorf("virtual device %q: simulated initialization failure (attempt %d of %d)",
			d.cfg.Name, d.initCalls, d.cfg.FailInitAttempts)
	}

	d.initialized = true
	return nil
}

// IsInitialized reports whether the device is online.
func (d *Driver) IsInitialized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initialized
}

// Shutdown takes the device offline.
func (d *Driver) Shutdown(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.initialized = false
	return nil
}

// Reset clears the stored frame without going offline.
func (d *Driver) Reset(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastFrame = driver.Frame{}
	d.lastForced = false
	return nil
}

// Update stores the frame as the device's current state. It honours ctx
// cancellation before touching state.
func (d *Driver) Update(ctx context.Context, frame driver.Frame, forced bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		return fmt.Errorf("virtual device %q: not initialized", d.cfg.Name)
	}
	d.updateCalls++
	d.lastFrame = frame
	d.lastForced = forced
	return nil
}

// Type returns the configured device type identity.
func (d *Driver) Type() string { return d.cfg.Type }

// Name returns the configured device name.
func (d *Driver) Name() string { return d.cfg.Name }

// Details describes the device for diagnostics.
func (d *Driver) Details() string {
	return fmt.Sprintf("virtual device, %d zones", d.cfg.Zones)
}

// Variables returns the virtual driver's configurable settings.
func (d *Driver) Variables() []driver.Variable {
	return []driver.Variable{
		{Name: d.cfg.Name + ".zones", Kind: "int", Default: d.cfg.Zones},
	}
}

// LastFrame returns the most recently applied frame and its forced flag.
func (d *Driver) LastFrame() (driver.Frame, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastFrame, d.lastForced
}

// UpdateCount returns how many updates the device has applied.
func (d *Driver) UpdateCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.updateCalls
}
