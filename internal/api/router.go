package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", s.handleHealth)

		// Overall system status
		r.Get("/status", s.handleStatus)
		r.Get("/status/report", s.handleStatusReport)

		// Device endpoints
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/initialized", s.handleInitializedDevices)
			r.Get("/variables", s.handleDeviceVariables)
			r.Post("/initialize", s.handleInitialize)
			r.Post("/reset", s.handleReset)
			r.Post("/shutdown", s.handleShutdown)
		})

		// Frame submission (testing and ad-hoc control; producers normally
		// publish to the MQTT intake topics)
		r.Post("/frames", s.handleSubmitFrame)

		// Disabled-type policy
		r.Route("/policy/disabled", func(r chi.Router) {
			r.Get("/", s.handleListDisabled)
			r.Put("/{type}", s.handleDisableType)
			r.Delete("/{type}", s.handleEnableType)
		})

		// Device event history
		r.Get("/events", s.handleListEvents)

		// WebSocket for real-time device-set notifications
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
