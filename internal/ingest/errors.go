package ingest

import (
	"errors"
	"fmt"

	"github.com/ignite/crm-ingest/internal/domain"
)

// ErrUnsupportedChannel indicates an event arrived on a channel the gateway
// does not recognize.
var ErrUnsupportedChannel = errors.New("unsupported ingestion channel")

// ErrCompanyNotFound is returned by CompanyDirectory implementations when no
// company is registered for a BCC slug or id. The gateway relies on it to
// tell a bad address (permanent rejection) apart from a directory outage
// (retryable failure).
var ErrCompanyNotFound = errors.New("company not found")

// ValidationError indicates event payload fields that fail validation. The
// event was not processed and retrying the same payload will fail the same
// way.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// DuplicateEventError indicates the event key was already processed. It
// carries the stored outcome so callers can return the original result.
type DuplicateEventError struct {
	Channel  domain.Channel
	EventKey string
	Result   string
}

func (e *DuplicateEventError) Error() string {
	return fmt.Sprintf("duplicate event on %s: %s", e.Channel, e.EventKey)
}

// ConflictError indicates a concurrent writer won a storage race and the
// loser could not recover by re-reading. These are retryable.
type ConflictError struct {
	Resource string
	Err      error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %v", e.Resource, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// ProcessingError indicates an infrastructure failure partway through the
// pipeline. The idempotency key was not committed, so the event may be
// safely retried.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing failed at %s: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }
