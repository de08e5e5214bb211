package api

import (
	"encoding/json"
	"net/http"

	"github.com/lumen-hub/lumen-core/internal/driver"
)

// handleStatus returns a machine-readable snapshot of the coordination core.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	statuses := s.manager.Statuses()

	initialized := 0
	for _, st := range statuses {
		if st.Initialized {
			initialized++
		}
	}

	resp := map[string]any{
		"devices":                  statuses,
		"initialized_count":        initialized,
		"any_initialized":          s.manager.AnyInitialized(),
		"remaining_retry_attempts": s.manager.RemainingRetryAttempts(),
	}
	if s.mqtt != nil {
		resp["mqtt_connected"] = s.mqtt.IsConnected()
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleStatusReport returns the human-readable one-device-per-line report.
func (s *Server) handleStatusReport(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response
	w.Write([]byte(s.manager.StatusReport()))
}

// handleListDevices returns the status of every registered device.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": s.manager.Statuses(),
	})
}

// handleInitializedDevices returns only devices that are currently initialized.
func (s *Server) handleInitializedDevices(w http.ResponseWriter, _ *http.Request) {
	drivers := s.manager.GetInitializedDevices()

	names := make([]string, 0, len(drivers))
	for _, d := range drivers {
		names = append(names, d.Name())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": names,
		"count":   len(names),
	})
}

// handleDeviceVariables returns the configuration variables exposed by
// every registered device type.
func (s *Server) handleDeviceVariables(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"variables": s.manager.RegisteredVariables(),
	})
}

// handleInitialize runs one initialization pass over all registered devices.
// Devices that fail the pass are handed to the background retry loop.
func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	s.manager.Initialize(r.Context())

	writeJSON(w, http.StatusAccepted, map[string]any{
		"any_initialized":          s.manager.AnyInitialized(),
		"remaining_retry_attempts": s.manager.RemainingRetryAttempts(),
	})
}

// handleReset resets every initialized device to its power-on state.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.manager.ResetDevices(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}

// handleShutdown shuts down every initialized device.
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	s.manager.Shutdown(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"status": "shutdown"})
}

// frameRequest is the JSON body for POST /frames.
type frameRequest struct {
	Colors []driver.RGB `json:"colors"`
	Forced bool         `json:"forced"`
}

// handleSubmitFrame dispatches one colour frame to all initialized devices.
//
// The dispatch is asynchronous: each device's coalescer applies the newest
// frame it has seen, so a 202 response does not mean the frame reached
// hardware. Intermediate frames may be discarded under load.
func (s *Server) handleSubmitFrame(w http.ResponseWriter, r *http.Request) {
	var req frameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if len(req.Colors) == 0 {
		writeBadRequest(w, "colors must not be empty")
		return
	}

	s.manager.UpdateDevices(driver.Frame{Colors: req.Colors}, req.Forced)

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}
