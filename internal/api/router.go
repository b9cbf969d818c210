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
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Webhook intake from platform adapters
		r.Post("/messages", s.handleMessage)

		// Device catalog
		r.Get("/devices", s.handleListDevices)

		// Broadcast to bound chats
		r.Route("/send", func(r chi.Router) {
			r.Get("/group", s.handleSendGroup)
			r.Get("/all", s.handleSendAll)
		})

		// Notification history
		r.Get("/history/{device_id}", s.handleHistory)
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
