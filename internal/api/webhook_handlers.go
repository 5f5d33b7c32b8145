package api

import (
	"errors"
	"net/http"

	"github.com/ignite/crm-ingest/internal/archive"
	"github.com/ignite/crm-ingest/internal/domain"
	"github.com/ignite/crm-ingest/internal/ingest"
	"github.com/ignite/crm-ingest/internal/pkg/httputil"
)

// HandleBCCWebhook ingests a BCC'd email. The owning company is resolved
// from the BCC address inside the payload, not from the API key: mail
// forwarders deliver for many companies under one key.
func (h *Handlers) HandleBCCWebhook(w http.ResponseWriter, r *http.Request) {
	var evt ingest.EmailEvent
	if !httputil.Decode(w, r, &evt) {
		return
	}

	res, err := h.gateway.IngestEmail(r.Context(), evt)
	if err != nil {
		writeIngestError(w, err)
		return
	}

	archive.StoreAsync(h.archiver, string(domain.ChannelBCCEmail), res.EventKey, evt)
	httputil.OK(w, res)
}

// HandleFormWebhook ingests a marketing-form submission. The company comes
// from the API key; a company_id in the body is ignored.
func (h *Handlers) HandleFormWebhook(w http.ResponseWriter, r *http.Request) {
	var evt ingest.FormEvent
	if !httputil.Decode(w, r, &evt) {
		return
	}

	cap := capabilityFrom(r.Context())
	if cap == nil || cap.CompanyID == "" {
		httputil.Unauthorized(w, "key is not bound to a company")
		return
	}
	evt.CompanyID = cap.CompanyID

	res, err := h.gateway.IngestForm(r.Context(), evt)
	if err != nil {
		writeIngestError(w, err)
		return
	}

	archive.StoreAsync(h.archiver, string(domain.ChannelFormSubmission), res.EventKey, evt)
	httputil.OK(w, res)
}

// writeIngestError maps the ingestion error taxonomy onto HTTP statuses.
func writeIngestError(w http.ResponseWriter, err error) {
	var valErr *ingest.ValidationError
	if errors.As(err, &valErr) {
		httputil.ErrorWithDetails(w, http.StatusBadRequest, "validation failed", "validation_error",
			map[string]string{"field": valErr.Field, "message": valErr.Message})
		return
	}
	if errors.Is(err, ingest.ErrUnsupportedChannel) {
		httputil.ErrorWithDetails(w, http.StatusBadRequest, err.Error(), "unsupported_channel", nil)
		return
	}
	var conflictErr *ingest.ConflictError
	if errors.As(err, &conflictErr) {
		// The race could not be recovered by re-reading; safe to retry.
		httputil.ErrorWithDetails(w, http.StatusConflict, err.Error(), "conflict", nil)
		return
	}
	httputil.InternalError(w, err)
}
