package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ignite/crm-ingest/internal/auth"
	"github.com/ignite/crm-ingest/internal/pkg/httputil"
)

type contextKey string

const capabilityKey contextKey = "capability"

// requireAPIKey resolves the caller's API key to a capability and stores it
// on the request context. Keys arrive as "Authorization: Bearer <key>" or in
// the X-API-Key header.
func requireAPIKey(keys *auth.KeyValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				if bearer := r.Header.Get("Authorization"); strings.HasPrefix(bearer, "Bearer ") {
					key = strings.TrimPrefix(bearer, "Bearer ")
				}
			}

			cap, err := keys.Validate(r.Context(), key)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidKey) {
					httputil.Unauthorized(w, "invalid api key")
					return
				}
				httputil.Error(w, http.StatusServiceUnavailable, "key validation unavailable")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), capabilityKey, cap)))
		})
	}
}

// capabilityFrom returns the capability stored by requireAPIKey.
func capabilityFrom(ctx context.Context) *auth.Capability {
	cap, _ := ctx.Value(capabilityKey).(*auth.Capability)
	return cap
}
