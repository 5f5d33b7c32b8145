package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ignite/crm-ingest/internal/config"
)

func TestValidate_StaticKeys(t *testing.T) {
	v := NewKeyValidator(config.AuthConfig{
		StaticKeys: map[string]string{"dev-key": "c-1"},
	}, nil)

	cap, err := v.Validate(context.Background(), "dev-key")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cap.CompanyID != "c-1" {
		t.Errorf("company = %s, want c-1", cap.CompanyID)
	}
	if !cap.HasScope("ingest:write") {
		t.Error("static keys should grant all scopes")
	}
}

func TestValidate_EmptyAndUnknownKeys(t *testing.T) {
	v := NewKeyValidator(config.AuthConfig{}, nil)

	if _, err := v.Validate(context.Background(), ""); err != ErrInvalidKey {
		t.Errorf("empty key: err = %v, want ErrInvalidKey", err)
	}
	if _, err := v.Validate(context.Background(), "nope"); err != ErrInvalidKey {
		t.Errorf("unknown key without service: err = %v, want ErrInvalidKey", err)
	}
}

func TestValidate_ServiceLookupAndCache(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		if r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"company_id":"c-42","scopes":["ingest:write"]}`))
	}))
	defer srv.Close()

	v := NewKeyValidator(config.AuthConfig{
		ServiceURL:   srv.URL,
		CacheTTLSecs: 300,
	}, srv.Client())
	ctx := context.Background()

	cap, err := v.Validate(ctx, "good-key")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cap.CompanyID != "c-42" || !cap.HasScope("ingest:write") {
		t.Errorf("capability = %+v", cap)
	}
	if cap.HasScope("admin") {
		t.Error("scope not granted should not pass")
	}

	if _, err := v.Validate(ctx, "good-key"); err != nil {
		t.Fatalf("cached Validate: %v", err)
	}
	if n := atomic.LoadInt64(&calls); n != 1 {
		t.Errorf("service calls = %d, want 1 (second hit cached)", n)
	}

	if _, err := v.Validate(ctx, "bad-key"); err != ErrInvalidKey {
		t.Errorf("rejected key: err = %v, want ErrInvalidKey", err)
	}
}
