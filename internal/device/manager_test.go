package device

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lumen-hub/lumen-core/internal/driver"
)

func TestManager_UpdateDevices(t *testing.T) {
	t.Run("skips uninitialized devices", func(t *testing.T) {
		a := newMockDriver("a")
		m := NewManager(testConfig(), nil, []driver.Driver{a})
		defer m.Close(time.Second)

		m.UpdateDevices(frameOf(1), false)
		time.Sleep(20 * time.Millisecond)

		if _, updates, _, _ := a.counts(); updates != 0 {
			t.Errorf("update calls on uninitialized device = %d, want 0", updates)
		}
	})

	t.Run("forwards frame to initialized devices", func(t *testing.T) {
		a := newMockDriver("a")
		b := newMockDriver("b")
		m := NewManager(testConfig(), nil, []driver.Driver{a, b})
		defer m.Close(time.Second)

		m.Initialize(context.Background())
		m.UpdateDevices(frameOf(7), true)

		for _, d := range []*mockDriver{a, b} {
			if !waitFor(t, time.Second, func() bool {
				_, updates, _, _ := d.counts()
				return updates == 1
			}) {
				t.Errorf("device %s never received the frame", d.name)
				continue
			}
			frame, forced := d.last()
			if frame.Colors[0].R != 7 || !forced {
				t.Errorf("device %s got (R=%d, forced=%v), want (7, true)", d.name, frame.Colors[0].R, forced)
			}
		}
	})

	t.Run("policy drift forces shutdown instead of update", func(t *testing.T) {
		a := newMockDriver("a")
		a.typ = "drifting"

		var mu sync.Mutex
		banned := false
		policy := PolicyFunc(func(typ string) bool {
			mu.Lock()
			defer mu.Unlock()
			return banned && typ == "drifting"
		})

		m := NewManager(testConfig(), policy, []driver.Driver{a})
		defer m.Close(time.Second)

		m.Initialize(context.Background())
		if !a.IsInitialized() {
			t.Fatal("device did not initialize")
		}

		mu.Lock()
		banned = true
		mu.Unlock()

		m.UpdateDevices(frameOf(9), false)

		_, updates, shutdowns, _ := a.counts()
		if shutdowns != 1 {
			t.Errorf("shutdown calls = %d, want 1", shutdowns)
		}
		if updates != 0 {
			t.Errorf("update calls = %d, want 0", updates)
		}
	})

	t.Run("policy drift drops pending frame and cancels in-flight update", func(t *testing.T) {
		a := newMockDriver("a")
		a.typ = "drifting"

		started := make(chan struct{}, 1)
		cancelled := make(chan struct{}, 1)
		release := make(chan struct{})
		a.updateFunc = func(ctx context.Context, _ driver.Frame, _ bool) error {
			select {
			case started <- struct{}{}:
			default:
			}
			select {
			case <-ctx.Done():
				select {
				case cancelled <- struct{}{}:
				default:
				}
				return ctx.Err()
			case <-release:
				return nil
			}
		}

		var mu sync.Mutex
		banned := false
		policy := PolicyFunc(func(typ string) bool {
			mu.Lock()
			defer mu.Unlock()
			return banned && typ == "drifting"
		})

		m := NewManager(testConfig(), policy, []driver.Driver{a})
		defer m.Close(time.Second)
		defer close(release)

		m.Initialize(context.Background())
		m.UpdateDevices(frameOf(1), false)

		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("device update never started")
		}

		mu.Lock()
		banned = true
		mu.Unlock()

		// The drift dispatch must purge the mailbox and cancel the blocked
		// update before shutting the device down, so the pre-drift frame is
		// never applied afterwards.
		m.UpdateDevices(frameOf(2), false)

		select {
		case <-cancelled:
		case <-time.After(time.Second):
			t.Fatal("in-flight update was not cancelled by the drift shutdown")
		}

		if _, _, shutdowns, _ := a.counts(); shutdowns != 1 {
			t.Errorf("shutdown calls = %d, want 1", shutdowns)
		}

		time.Sleep(20 * time.Millisecond)
		if _, updates, _, _ := a.counts(); updates != 0 {
			t.Errorf("update calls after drift shutdown = %d, want 0", updates)
		}
	})
}

func TestManager_Shutdown(t *testing.T) {
	a := newMockDriver("a")
	b := newMockDriver("b")
	m := NewManager(testConfig(), nil, []driver.Driver{a, b})
	defer m.Close(time.Second)

	m.Initialize(context.Background())
	m.Shutdown(context.Background())

	if a.IsInitialized() || b.IsInitialized() {
		t.Error("devices still initialized after Shutdown")
	}
	if m.AnyInitialized() {
		t.Error("AnyInitialized() = true after Shutdown, want false")
	}

	// Idempotent: a second call skips already-offline devices.
	m.Shutdown(context.Background())
	if _, _, shutdowns, _ := a.counts(); shutdowns != 1 {
		t.Errorf("shutdown calls after repeated Shutdown = %d, want 1", shutdowns)
	}
}

func TestManager_ResetDevices(t *testing.T) {
	a := newMockDriver("a")
	b := newMockDriver("b") // stays offline
	b.failInitTimes = 1000
	m := NewManager(Config{RetryAttempts: 1, RetryInterval: time.Millisecond}, nil, []driver.Driver{a, b})
	defer m.Close(time.Second)

	m.Initialize(context.Background())
	m.ResetDevices(context.Background())

	if _, _, _, resets := a.counts(); resets != 1 {
		t.Errorf("reset calls on initialized device = %d, want 1", resets)
	}
	if _, _, _, resets := b.counts(); resets != 0 {
		t.Errorf("reset calls on offline device = %d, want 0", resets)
	}
}

func TestManager_GetInitializedDevices(t *testing.T) {
	a := newMockDriver("a")
	b := newMockDriver("b")
	b.failInitTimes = 1000
	m := NewManager(Config{RetryAttempts: 1, RetryInterval: time.Millisecond}, nil, []driver.Driver{a, b})
	defer m.Close(time.Second)

	m.Initialize(context.Background())

	got := m.GetInitializedDevices()
	if len(got) != 1 || got[0].Name() != "a" {
		t.Fatalf("GetInitializedDevices() = %d devices, want exactly [a]", len(got))
	}
}

func TestManager_StatusReport(t *testing.T) {
	a := newMockDriver("alpha")
	b := newMockDriver("beta")
	b.typ = "banned"
	policy := PolicyFunc(func(typ string) bool { return typ == "banned" })
	m := NewManager(testConfig(), policy, []driver.Driver{a, b})
	defer m.Close(time.Second)

	m.Initialize(context.Background())

	report := m.StatusReport()
	if !strings.Contains(report, "alpha (mock): initialized") {
		t.Errorf("report missing initialized line:\n%s", report)
	}
	if !strings.Contains(report, "beta (banned): disabled") {
		t.Errorf("report missing disabled line:\n%s", report)
	}
}

func TestManager_RegisteredVariables(t *testing.T) {
	a := newMockDriver("a")
	b := newMockDriver("b")
	m := NewManager(testConfig(), nil, []driver.Driver{a, b})
	defer m.Close(time.Second)

	vars := m.RegisteredVariables()
	if len(vars) != 2 {
		t.Fatalf("RegisteredVariables() = %d variables, want 2", len(vars))
	}
	if vars[0].Name != "a.brightness" {
		t.Errorf("first variable = %q, want %q", vars[0].Name, "a.brightness")
	}
}

func TestManager_CloseBoundedJoin(t *testing.T) {
	a := newMockDriver("a")
	a.initialized = true
	// A driver stuck in an update call, ignoring cancellation.
	stuck := make(chan struct{})
	a.updateFunc = func(_ context.Context, _ driver.Frame, _ bool) error {
		<-stuck
		return nil
	}
	defer close(stuck)

	m := NewManager(testConfig(), nil, []driver.Driver{a})
	m.UpdateDevices(frameOf(1), false)

	if !waitFor(t, time.Second, func() bool {
		_, updates, _, _ := a.counts()
		_ = updates
		m.handles[0].coa.mu.Lock()
		busy := m.handles[0].coa.cancel != nil
		m.handles[0].coa.mu.Unlock()
		return busy
	}) {
		t.Fatal("update never started")
	}

	start := time.Now()
	m.Close(50 * time.Millisecond)
	elapsed := time.Since(start)

	if elapsed > 500*time.Millisecond {
		t.Errorf("Close blocked for %v, want bounded by the grace period", elapsed)
	}
}
