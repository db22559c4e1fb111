package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/brickplay-core/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.observeMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodyLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// System metrics (no auth required for basic monitoring)
		r.Get("/metrics", s.handleMetrics)
		r.Handle("/metrics/prometheus", s.prometheusHandler())

		// WebSocket (auth via single-use ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleWhoAmI)
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Device catalogue
			r.Route("/devices", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermDeviceRead)).Get("/", s.handleListDevices)
				r.With(s.requirePermission(auth.PermDeviceManage)).Post("/", s.handleRegisterDevice)
				r.With(s.requirePermission(auth.PermDeviceRead)).Get("/stats", s.handleDeviceStats)

				r.Route("/{id}", func(r chi.Router) {
					r.With(s.requirePermission(auth.PermDeviceRead)).Get("/", s.handleGetDevice)
					r.With(s.requirePermission(auth.PermDeviceManage)).Patch("/", s.handleRenameDevice)
					r.With(s.requirePermission(auth.PermDeviceManage)).Delete("/", s.handleDeleteDevice)
				})
			})

			// Creations
			r.Route("/creations", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermCreationRead)).Get("/", s.handleListCreations)
				r.With(s.requirePermission(auth.PermCreationEdit)).Post("/", s.handleImportCreation)

				r.Route("/{id}", func(r chi.Router) {
					r.With(s.requirePermission(auth.PermCreationRead)).Get("/", s.handleGetCreation)
					r.With(s.requirePermission(auth.PermCreationEdit)).Delete("/", s.handleDeleteCreation)
				})
			})

			// Action binding
			r.Route("/events/{eventID}", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermCreationRead)).Get("/action-form", s.handleActionForm)
				r.With(s.requirePermission(auth.PermCreationEdit)).Post("/actions", s.handleBindAction)
			})
			r.Route("/actions/{actionID}", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermCreationRead)).Get("/", s.handleGetAction)
				r.With(s.requirePermission(auth.PermCreationEdit)).Delete("/", s.handleDeleteAction)
			})

			// Play session
			r.Route("/session", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermSessionRead)).Get("/", s.handleSessionStatus)

				r.Group(func(r chi.Router) {
					r.Use(s.requirePermission(auth.PermSessionControl))
					r.Post("/", s.handleStartSession)
					r.Delete("/", s.handleStopSession)
					r.Put("/profile", s.handleSelectProfile)
					r.Put("/level", s.handleSetLevel)
				})
			})

			// Remote UI surface
			r.With(s.requirePermission(auth.PermSessionRead)).Get("/prompts", s.handleListPrompts)
			r.With(s.requirePermission(auth.PermCreationEdit)).Post("/prompts/{id}/answer", s.handleAnswerPrompt)
			r.With(s.requirePermission(auth.PermSessionRead)).Get("/progress", s.handleListProgress)
			r.With(s.requirePermission(auth.PermSessionControl)).Post("/progress/{id}/cancel", s.handleCancelProgress)

			// Audit trail
			r.With(s.requirePermission(auth.PermAuditRead)).Get("/audit", s.handleListAuditLogs)
		})
	})

	return r
}

// prometheusHandler serves the configured gatherer, or the default
// registry when none was given.
func (s *Server) prometheusHandler() http.Handler {
	if s.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
	}

	if s.db != nil {
		if err := s.db.HealthCheck(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = err.Error()
		}
	}
	if s.mqtt != nil {
		body["mqtt_connected"] = s.mqtt.IsConnected()
	}

	writeJSON(w, status, body)
}
