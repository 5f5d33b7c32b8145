// Package auth resolves API keys to capabilities. Operator authentication
// and permission evaluation live in an external key-validation service; this
// package only asks that service (or a static development map) which company
// a key belongs to and what scopes it carries.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ignite/crm-ingest/internal/config"
	"github.com/ignite/crm-ingest/internal/pkg/httpretry"
)

// ErrInvalidKey indicates the key is unknown, revoked, or malformed.
var ErrInvalidKey = errors.New("invalid api key")

// Capability is the validation result used by the HTTP layer.
type Capability struct {
	CompanyID string   `json:"company_id"`
	Scopes    []string `json:"scopes"`
}

// HasScope reports whether the capability grants the given scope.
func (c *Capability) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope || s == "*" {
			return true
		}
	}
	return false
}

type cachedCap struct {
	cap     *Capability
	expires time.Time
}

// KeyValidator validates API keys against the external service, with a
// short-lived in-process cache so webhook bursts don't hammer it.
type KeyValidator struct {
	cfg    config.AuthConfig
	client httpretry.HTTPDoer

	mu    sync.Mutex
	cache map[string]cachedCap
}

// NewKeyValidator creates a validator. client may be nil, in which case a
// retrying HTTP client with the configured timeout is used.
func NewKeyValidator(cfg config.AuthConfig, client httpretry.HTTPDoer) *KeyValidator {
	if client == nil {
		client = httpretry.NewRetryClient(&http.Client{Timeout: cfg.Timeout()}, 2)
	}
	return &KeyValidator{
		cfg:    cfg,
		client: client,
		cache:  make(map[string]cachedCap),
	}
}

// Validate resolves an API key to its capability. Static keys (development
// fallback) grant all scopes for their mapped company.
func (v *KeyValidator) Validate(ctx context.Context, key string) (*Capability, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrInvalidKey
	}

	if companyID, ok := v.cfg.StaticKeys[key]; ok {
		return &Capability{CompanyID: companyID, Scopes: []string{"*"}}, nil
	}
	if v.cfg.ServiceURL == "" {
		return nil, ErrInvalidKey
	}

	if cap := v.cached(key); cap != nil {
		return cap, nil
	}

	cap, err := v.resolve(ctx, key)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.cache[key] = cachedCap{cap: cap, expires: time.Now().Add(v.cfg.CacheTTL())}
	v.mu.Unlock()
	return cap, nil
}

func (v *KeyValidator) cached(key string) *Capability {
	v.mu.Lock()
	defer v.mu.Unlock()
	entry, ok := v.cache[key]
	if !ok || time.Now().After(entry.expires) {
		return nil
	}
	return entry.cap
}

func (v *KeyValidator) resolve(ctx context.Context, key string) (*Capability, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(v.cfg.ServiceURL, "/")+"/v1/keys/validate", nil)
	if err != nil {
		return nil, fmt.Errorf("key validation request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("key validation call: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		cap := &Capability{}
		if err := json.NewDecoder(resp.Body).Decode(cap); err != nil {
			return nil, fmt.Errorf("key validation response: %w", err)
		}
		if cap.CompanyID == "" {
			return nil, ErrInvalidKey
		}
		return cap, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidKey
	default:
		return nil, fmt.Errorf("key validation service returned %d", resp.StatusCode)
	}
}
