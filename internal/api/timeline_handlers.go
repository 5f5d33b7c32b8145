package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/crm-ingest/internal/pkg/httputil"
	"github.com/ignite/crm-ingest/internal/service/person"
)

// HandleTimeline returns a person's activities in insertion order, scoped to
// the caller's company.
func (h *Handlers) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	personID := chi.URLParam(r, "id")

	cap := capabilityFrom(r.Context())
	if cap == nil || cap.CompanyID == "" {
		httputil.Unauthorized(w, "key is not bound to a company")
		return
	}

	p, err := h.people.Get(r.Context(), personID)
	if err != nil {
		if errors.Is(err, person.ErrNotFound) {
			httputil.NotFound(w, "person not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	if p.CompanyID != cap.CompanyID {
		// Foreign ids look exactly like unknown ones.
		httputil.NotFound(w, "person not found")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	acts, err := h.activities.Timeline(r.Context(), personID, limit, offset)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, map[string]interface{}{
		"person":     p,
		"activities": acts,
		"count":      len(acts),
	})
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
