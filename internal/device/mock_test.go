package device

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lumen-hub/lumen-core/internal/driver"
)

// mockDriver is a controllable Driver implementation for tests.
type mockDriver struct {
	name string
	typ  string

	mu            sync.Mutex
	initialized   bool
	failInitTimes int // fail the first N Initialize calls
	initCalls     int
	shutdownCalls int
	resetCalls    int
	updateCalls   int
	lastFrame     driver.Frame
	lastForced    bool

	// updateFunc, when set, replaces the default Update behaviour.
	updateFunc func(ctx context.Context, frame driver.Frame, forced bool) error
}

func newMockDriver(name string) *mockDriver {
	return &mockDriver{name: name, typ: "mock"}
}

func (d *mockDriver) Initialize(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.initialized {
		return nil
	}
	d.initCalls++
	if d.initCalls <= d.failInitTimes {
		return errInitRefused
	}
	d.initialized = true
	return nil
}

func (d *mockDriver) IsInitialized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initialized
}

func (d *mockDriver) Shutdown(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shutdownCalls++
	d.initialized = false
	return nil
}

func (d *mockDriver) Reset(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetCalls++
	return nil
}

func (d *mockDriver) Update(ctx context.Context, frame driver.Frame, forced bool) error {
	d.mu.Lock()
	fn := d.updateFunc
	d.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, frame, forced); err != nil {
			return err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.updateCalls++
	d.lastFrame = frame
	d.lastForced = forced
	return nil
}

func (d *mockDriver) Type() string    { return d.typ }
func (d *mockDriver) Name() string    { return d.name }
func (d *mockDriver) Details() string { return "mock device" }

func (d *mockDriver) Variables() []driver.Variable {
	return []driver.Variable{{Name: d.name + ".brightness", Kind: "int", Default: 100}}
}

func (d *mockDriver) counts() (initCalls, updateCalls, shutdownCalls, resetCalls int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initCalls, d.updateCalls, d.shutdownCalls, d.resetCalls
}

func (d *mockDriver) last() (driver.Frame, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastFrame, d.lastForced
}

var errInitRefused = &initError{}

type initError struct{}

func (*initError) Error() string { return "device refused to initialize" }

// frameOf builds a one-zone frame with the given red channel, so tests can
// tell frames apart.
func frameOf(r uint8) driver.Frame {
	return driver.Frame{Colors: []driver.RGB{{R: r}}}
}

// waitFor polls cond until it returns true or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}
