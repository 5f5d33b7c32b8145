package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/crm-ingest/internal/auth"
)

// SetupRoutes configures the router. Tracking endpoints and the health check
// are public; everything else requires an API key.
func SetupRoutes(h *Handlers, keys *auth.KeyValidator) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	// Tracking endpoints are hit by mail clients and browsers, not API
	// callers: no auth, and they never return an error status.
	r.Get("/t/o/{token}.gif", h.HandleOpen)
	r.Get("/t/c/{token}", h.HandleClick)

	if keys != nil {
		r.Group(func(r chi.Router) {
			r.Use(requireAPIKey(keys))

			r.Post("/webhooks/bcc", h.HandleBCCWebhook)
			r.Post("/webhooks/form", h.HandleFormWebhook)
			r.Post("/compose", h.HandleCompose)
			r.Get("/people/{id}/timeline", h.HandleTimeline)
		})
	}

	return r
}
