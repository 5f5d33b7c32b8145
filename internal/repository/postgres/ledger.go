package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/crm-ingest/internal/domain"
	"github.com/ignite/crm-ingest/internal/service/ledger"
)

// LedgerRepo implements ledger.Repository against PostgreSQL. The primary key
// on (channel, event_key) makes the ledger's insert-if-absent atomic.
type LedgerRepo struct{ db *sql.DB }

// NewLedgerRepo creates a Postgres-backed idempotency ledger repository.
func NewLedgerRepo(db *sql.DB) *LedgerRepo { return &LedgerRepo{db: db} }

func (r *LedgerRepo) Find(ctx context.Context, channel domain.Channel, eventKey string) (*domain.IdempotencyRecord, error) {
	rec := &domain.IdempotencyRecord{}
	err := r.db.QueryRowContext(ctx, `
		SELECT channel, event_key, result, created_at
		FROM crm_idempotency_keys
		WHERE channel = $1 AND event_key = $2
	`, channel, eventKey).Scan(&rec.Channel, &rec.EventKey, &rec.Result, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find idempotency key: %w", err)
	}
	return rec, nil
}

func (r *LedgerRepo) Insert(ctx context.Context, rec *domain.IdempotencyRecord) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO crm_idempotency_keys (channel, event_key, result, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (channel, event_key) DO NOTHING
	`, rec.Channel, rec.EventKey, rec.Result)
	if err != nil {
		return false, fmt.Errorf("insert idempotency key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert idempotency key: %w", err)
	}
	return n == 1, nil
}
