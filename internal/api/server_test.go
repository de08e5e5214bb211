package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lumen-hub/lumen-core/internal/device"
	"github.com/lumen-hub/lumen-core/internal/driver"
	"github.com/lumen-hub/lumen-core/internal/driver/virtual"
	"github.com/lumen-hub/lumen-core/internal/history"
	"github.com/lumen-hub/lumen-core/internal/infrastructure/config"
	"github.com/lumen-hub/lumen-core/internal/infrastructure/logging"
	"github.com/lumen-hub/lumen-core/internal/policy"
)

// memPolicyRepository is an in-memory policy.Repository for handler tests.
type memPolicyRepository struct {
	types map[string]struct{}
}

func newMemPolicyRepository() *memPolicyRepository {
	return &memPolicyRepository{types: make(map[string]struct{})}
}

func (r *memPolicyRepository) List(ctx context.Context) ([]string, error) {
	out := make([]string, 0, len(r.types))
	for t := range r.types {
		out = append(out, t)
	}
	return out, nil
}

func (r *memPolicyRepository) Add(ctx context.Context, deviceType string) error {
	r.types[deviceType] = struct{}{}
	return nil
}

func (r *memPolicyRepository) Remove(ctx context.Context, deviceType string) error {
	if _, ok := r.types[deviceType]; !ok {
		return policy.ErrNotDisabled
	}
	delete(r.types, deviceType)
	return nil
}

// memHistory is an in-memory history.Repository for handler tests.
type memHistory struct {
	events []history.Event
}

func (m *memHistory) Record(ctx context.Context, e history.Event) error {
	m.events = append(m.events, e)
	return nil
}

func (m *memHistory) ListRecent(ctx context.Context, deviceName string, limit int) ([]history.Event, error) {
	var out []history.Event
	for i := len(m.events) - 1; i >= 0; i-- {
		if deviceName != "" && m.events[i].DeviceName != deviceName {
			continue
		}
		out = append(out, m.events[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type testEnv struct {
	server  *Server
	manager *device.Manager
	policy  *policy.Store
	history *memHistory
	http    *httptest.Server
	strip   *virtual.Driver
}

// newTestEnv builds a server over one virtual LED strip and an in-memory
// policy store, backed by httptest.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	strip := virtual.New(virtual.Config{Type: "ledstrip", Name: "desk", Zones: 4})

	store := policy.NewStore(newMemPolicyRepository())

	mgr := device.NewManager(
		device.Config{RetryAttempts: 3, RetryInterval: 5 * time.Millisecond},
		device.PolicyFunc(store.Disabled),
		[]driver.Driver{strip},
	)
	t.Cleanup(func() { mgr.Close(time.Second) })

	hist := &memHistory{}

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read: 5, Write: 5, Idle: 10,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:  logging.Default(),
		Manager: mgr,
		Policy:  store,
		History: hist,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	srv.hub = NewHub(srv.wsCfg, srv.logger)

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	return &testEnv{
		server:  srv,
		manager: mgr,
		policy:  store,
		history: hist,
		http:    ts,
		strip:   strip,
	}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(e.http.URL + path)
	if err != nil {
		t.Fatalf("GET %s error = %v", path, err)
	}
	return resp, decodeBody(t, resp)
}

func (e *testEnv) post(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	resp, err := http.Post(e.http.URL+path, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s error = %v", path, err)
	}
	return resp, decodeBody(t, resp)
}

func (e *testEnv) do(t *testing.T, method, path string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.http.URL+path, nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	if resp.Header.Get("Content-Type") != "application/json" {
		return nil
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return body
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.get(t, "/api/v1/health")

	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health status = %d, want 200", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("health status = %v, want ok", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("health version = %v, want test", body["version"])
	}
}

func TestHandleStatus(t *testing.T) {
	env := newTestEnv(t)

	t.Run("before initialization", func(t *testing.T) {
		resp, body := env.get(t, "/api/v1/status")

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET /status status = %d, want 200", resp.StatusCode)
		}
		if body["any_initialized"] != false {
			t.Errorf("any_initialized = %v, want false", body["any_initialized"])
		}
	})

	t.Run("after initialization", func(t *testing.T) {
		env.manager.Initialize(context.Background())

		resp, body := env.get(t, "/api/v1/status")

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET /status status = %d, want 200", resp.StatusCode)
		}
		if body["any_initialized"] != true {
			t.Errorf("any_initialized = %v, want true", body["any_initialized"])
		}
		if body["initialized_count"] != float64(1) {
			t.Errorf("initialized_count = %v, want 1", body["initialized_count"])
		}
	})
}

func TestHandleInitialize(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.post(t, "/api/v1/devices/initialize", nil)

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("POST /devices/initialize status = %d, want 202", resp.StatusCode)
	}
	if body["any_initialized"] != true {
		t.Errorf("any_initialized = %v, want true", body["any_initialized"])
	}
	if !env.strip.IsInitialized() {
		t.Error("virtual device not initialized after POST /devices/initialize")
	}
}

func TestHandleInitializedDevices(t *testing.T) {
	env := newTestEnv(t)
	env.manager.Initialize(context.Background())

	resp, body := env.get(t, "/api/v1/devices/initialized")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /devices/initialized status = %d, want 200", resp.StatusCode)
	}
	if body["count"] != float64(1) {
		t.Errorf("count = %v, want 1", body["count"])
	}
}

func TestHandleSubmitFrame(t *testing.T) {
	env := newTestEnv(t)
	env.manager.Initialize(context.Background())

	t.Run("accepts a frame", func(t *testing.T) {
		resp, _ := env.post(t, "/api/v1/frames", map[string]any{
			"colors": []map[string]int{{"r": 255, "g": 0, "b": 0}},
		})

		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("POST /frames status = %d, want 202", resp.StatusCode)
		}

		// Dispatch is asynchronous; poll until the virtual device applies it.
		deadline := time.After(time.Second)
		for env.strip.UpdateCount() == 0 {
			select {
			case <-deadline:
				t.Fatal("virtual device never received the frame")
			case <-time.After(time.Millisecond):
			}
		}
	})

	t.Run("rejects empty colors", func(t *testing.T) {
		resp, _ := env.post(t, "/api/v1/frames", map[string]any{
			"colors": []map[string]int{},
		})

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("POST /frames status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		resp, err := http.Post(env.http.URL+"/api/v1/frames", "application/json",
			bytes.NewBufferString("{not json"))
		if err != nil {
			t.Fatalf("POST /frames error = %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("POST /frames status = %d, want 400", resp.StatusCode)
		}
	})
}

func TestHandleShutdownAndReset(t *testing.T) {
	env := newTestEnv(t)
	env.manager.Initialize(context.Background())

	resp, _ := env.post(t, "/api/v1/devices/reset", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("POST /devices/reset status = %d, want 200", resp.StatusCode)
	}

	resp, _ = env.post(t, "/api/v1/devices/shutdown", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("POST /devices/shutdown status = %d, want 200", resp.StatusCode)
	}
	if env.manager.AnyInitialized() {
		t.Error("AnyInitialized() = true after shutdown, want false")
	}
}

func TestPolicyEndpoints(t *testing.T) {
	env := newTestEnv(t)

	t.Run("disable a type", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPut, env.http.URL+"/api/v1/policy/disabled/ledstrip", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("PUT error = %v", err)
		}
		body := decodeBody(t, resp)

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("PUT /policy/disabled/ledstrip status = %d, want 200", resp.StatusCode)
		}
		if body["disabled"] != true {
			t.Errorf("disabled = %v, want true", body["disabled"])
		}
		if !env.policy.Disabled("ledstrip") {
			t.Error("store does not report ledstrip as disabled")
		}
	})

	t.Run("list shows the type", func(t *testing.T) {
		resp, body := env.get(t, "/api/v1/policy/disabled/")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET /policy/disabled status = %d, want 200", resp.StatusCode)
		}
		disabled, _ := body["disabled"].([]any)
		if len(disabled) != 1 || disabled[0] != "ledstrip" {
			t.Errorf("disabled = %v, want [ledstrip]", body["disabled"])
		}
	})

	t.Run("enable removes the type", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodDelete, "/api/v1/policy/disabled/ledstrip")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("DELETE /policy/disabled/ledstrip status = %d, want 200", resp.StatusCode)
		}
		if env.policy.Disabled("ledstrip") {
			t.Error("store still reports ledstrip as disabled")
		}
	})

	t.Run("enable of a non-disabled type is 404", func(t *testing.T) {
		resp, _ := env.do(t, http.MethodDelete, "/api/v1/policy/disabled/matrix")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("DELETE /policy/disabled/matrix status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestHandleListEvents(t *testing.T) {
	env := newTestEnv(t)

	env.history.events = []history.Event{
		{ID: "1", DeviceName: "desk", Event: "initialized", OccurredAt: time.Now()},
		{ID: "2", DeviceName: "wall", Event: "initialize_failed", OccurredAt: time.Now()},
	}

	t.Run("all events", func(t *testing.T) {
		resp, body := env.get(t, "/api/v1/events")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET /events status = %d, want 200", resp.StatusCode)
		}
		if body["count"] != float64(2) {
			t.Errorf("count = %v, want 2", body["count"])
		}
	})

	t.Run("filtered by device", func(t *testing.T) {
		resp, body := env.get(t, "/api/v1/events?device=desk")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET /events?device=desk status = %d, want 200", resp.StatusCode)
		}
		if body["count"] != float64(1) {
			t.Errorf("count = %v, want 1", body["count"])
		}
	})

	t.Run("invalid limit", func(t *testing.T) {
		resp, _ := env.get(t, "/api/v1/events?limit=zero")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("GET /events?limit=zero status = %d, want 400", resp.StatusCode)
		}
	})
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.get(t, "/api/v1/health")
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("response missing X-Request-ID header")
	}
}

func TestNew_MissingDependencies(t *testing.T) {
	_, err := New(Deps{})
	if err == nil {
		t.Error("New() with no dependencies succeeded, want error")
	}
}
