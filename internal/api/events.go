package api

import (
	"net/http"
	"strconv"
)

// handleListEvents returns recent device lifecycle events, newest first.
//
// Query parameters:
//   - device: filter by device name (optional)
//   - limit: maximum events to return (default 50, capped at 200)
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeNotFound(w, "event history is not enabled")
		return
	}

	deviceName := r.URL.Query().Get("device")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := s.history.ListRecent(r.Context(), deviceName, limit)
	if err != nil {
		s.logger.Error("listing device events", "error", err)
		writeInternalError(w, "failed to list device events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}
