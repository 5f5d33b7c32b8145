package ledger

import (
	"context"

	"github.com/ignite/crm-ingest/internal/domain"
)

// Repository defines the data access contract for the idempotency ledger.
type Repository interface {
	// Find returns the record for (channel, key), or ErrNotFound.
	Find(ctx context.Context, channel domain.Channel, key string) (*domain.IdempotencyRecord, error)

	// Insert stores the record if and only if no record exists for its
	// (channel, key). Returns true when this call won the insert, false when
	// another writer got there first. Never overwrites.
	Insert(ctx context.Context, rec *domain.IdempotencyRecord) (bool, error)
}
