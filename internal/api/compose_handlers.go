package api

import (
	"errors"
	"net/http"

	"github.com/ignite/crm-ingest/internal/compose"
	"github.com/ignite/crm-ingest/internal/pkg/httputil"
)

// HandleCompose renders an outbound email for a person in the caller's
// company, instrumented for tracking.
func (h *Handlers) HandleCompose(w http.ResponseWriter, r *http.Request) {
	var req compose.Request
	if !httputil.Decode(w, r, &req) {
		return
	}

	cap := capabilityFrom(r.Context())
	if cap == nil || cap.CompanyID == "" {
		httputil.Unauthorized(w, "key is not bound to a company")
		return
	}
	req.CompanyID = cap.CompanyID

	if req.PersonID == "" {
		httputil.ErrorWithDetails(w, http.StatusBadRequest, "validation failed", "validation_error",
			map[string]string{"field": "person_id", "message": "required"})
		return
	}

	email, err := h.composer.Compose(r.Context(), req)
	if err != nil {
		if errors.Is(err, compose.ErrPersonNotFound) {
			httputil.NotFound(w, "person not found")
			return
		}
		var renderErr *compose.RenderError
		if errors.As(err, &renderErr) {
			httputil.ErrorWithDetails(w, http.StatusBadRequest, "template error", "render_error",
				map[string]string{"field": renderErr.Part, "message": renderErr.Err.Error()})
			return
		}
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, email)
}
