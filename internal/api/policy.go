package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumen-hub/lumen-core/internal/policy"
)

// handleListDisabled returns the device types currently barred from
// initialization and dispatch.
func (s *Server) handleListDisabled(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"disabled": s.policy.ListDisabled(),
	})
}

// handleDisableType marks a device type as disabled.
//
// Already-running devices of that type are shut down on the next frame
// dispatch; the policy is re-checked per dispatch, not on write.
func (s *Server) handleDisableType(w http.ResponseWriter, r *http.Request) {
	deviceType := chi.URLParam(r, "type")

	if err := s.policy.Disable(r.Context(), deviceType); err != nil {
		if errors.Is(err, policy.ErrEmptyType) {
			writeBadRequest(w, "device type must not be empty")
			return
		}
		s.logger.Error("disabling device type", "type", deviceType, "error", err)
		writeInternalError(w, "failed to disable device type")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"type":     deviceType,
		"disabled": true,
	})
}

// handleEnableType removes a device type from the disabled set.
func (s *Server) handleEnableType(w http.ResponseWriter, r *http.Request) {
	deviceType := chi.URLParam(r, "type")

	if err := s.policy.Enable(r.Context(), deviceType); err != nil {
		switch {
		case errors.Is(err, policy.ErrEmptyType):
			writeBadRequest(w, "device type must not be empty")
		case errors.Is(err, policy.ErrNotDisabled):
			writeNotFound(w, "device type is not disabled")
		default:
			s.logger.Error("enabling device type", "type", deviceType, "error", err)
			writeInternalError(w, "failed to enable device type")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"type":     deviceType,
		"disabled": false,
	})
}
