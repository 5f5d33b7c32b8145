package api

import (
	"errors"
	"net"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/crm-ingest/internal/ingest"
	"github.com/ignite/crm-ingest/internal/pkg/logger"
	"github.com/ignite/crm-ingest/internal/service/tracker"
)

// pixelGIF is a 1x1 transparent GIF.
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x21, 0xF9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2C, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3B,
}

// HandleOpen records a pixel fetch. It always answers 200 image/gif: a
// broken tracker must never break mail rendering, so unknown tokens and
// storage failures are logged and swallowed.
func (h *Handlers) HandleOpen(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	_, err := h.gateway.IngestOpen(r.Context(), ingest.OpenEvent{
		Token: token,
		Meta:  clientMeta(r),
	})
	if err != nil && !errors.Is(err, tracker.ErrUnknownToken) {
		logger.Warn("open tracking failed", "token", token, "error", err.Error())
	}

	servePixel(w)
}

// HandleClick records a tracked-link click and redirects to the destination.
// The redirect happens no matter what: a dead token must still deliver the
// reader to the page they clicked.
func (h *Handlers) HandleClick(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	dest := r.URL.Query().Get("u")
	sig := r.URL.Query().Get("sig")

	_, err := h.gateway.IngestClick(r.Context(), ingest.ClickEvent{
		Token:     token,
		URL:       dest,
		Signature: sig,
		Meta:      clientMeta(r),
	})
	if err != nil && !errors.Is(err, tracker.ErrUnknownToken) && !errors.Is(err, tracker.ErrBadSignature) {
		logger.Warn("click tracking failed", "token", token, "error", err.Error())
	}

	if !validRedirect(dest) {
		// Nothing sane to redirect to; still not an error.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, dest, http.StatusFound)
}

func servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	w.Write(pixelGIF)
}

// validRedirect accepts only absolute http(s) destinations.
func validRedirect(dest string) bool {
	u, err := url.Parse(dest)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// clientMeta extracts the caller's IP and user agent. middleware.RealIP has
// already folded X-Forwarded-For into RemoteAddr.
func clientMeta(r *http.Request) tracker.ClientMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return tracker.ClientMeta{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}
