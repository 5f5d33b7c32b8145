// Package api exposes the ingestion core over HTTP: authenticated webhook
// and compose endpoints, public tracking endpoints, and the timeline read
// API.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/crm-ingest/internal/archive"
	"github.com/ignite/crm-ingest/internal/auth"
	"github.com/ignite/crm-ingest/internal/compose"
	"github.com/ignite/crm-ingest/internal/config"
	"github.com/ignite/crm-ingest/internal/ingest"
	"github.com/ignite/crm-ingest/internal/service/activity"
	"github.com/ignite/crm-ingest/internal/service/person"
)

// Handlers bundles the services the HTTP layer dispatches into.
type Handlers struct {
	gateway    *ingest.Gateway
	composer   *compose.Service
	people     *person.Service
	activities *activity.Service
	archiver   archive.Archiver
}

// NewHandlers wires the handler set. archiver may be nil to disable payload
// archiving.
func NewHandlers(
	gateway *ingest.Gateway,
	composer *compose.Service,
	people *person.Service,
	activities *activity.Service,
	archiver archive.Archiver,
) *Handlers {
	return &Handlers{
		gateway:    gateway,
		composer:   composer,
		people:     people,
		activities: activities,
		archiver:   archiver,
	}
}

// Server is the HTTP front of the ingestion core.
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer creates the server. keys may be nil, which disables the
// authenticated routes entirely (tracking and health stay up).
func NewServer(cfg config.ServerConfig, h *Handlers, keys *auth.KeyValidator) *Server {
	return &Server{
		config:  cfg,
		handler: SetupRoutes(h, keys),
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.handler,
		// Webhook payloads are small; tight timeouts keep slow senders from
		// pinning connections.
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}
