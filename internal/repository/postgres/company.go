package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/crm-ingest/internal/domain"
	"github.com/ignite/crm-ingest/internal/ingest"
)

// CompanyRepo reads the externally managed company table. The ingestion core
// never writes companies; it only routes inbound mail by BCC slug.
type CompanyRepo struct{ db *sql.DB }

// NewCompanyRepo creates a Postgres-backed company reader.
func NewCompanyRepo(db *sql.DB) *CompanyRepo { return &CompanyRepo{db: db} }

func (r *CompanyRepo) FindByBCCSlug(ctx context.Context, slug string) (*domain.Company, error) {
	c := &domain.Company{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, bcc_slug FROM crm_companies WHERE bcc_slug = $1
	`, slug).Scan(&c.ID, &c.BCCSlug)
	if err == sql.ErrNoRows {
		return nil, ingest.ErrCompanyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find company by slug: %w", err)
	}
	return c, nil
}

func (r *CompanyRepo) FindByID(ctx context.Context, id string) (*domain.Company, error) {
	c := &domain.Company{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, bcc_slug FROM crm_companies WHERE id = $1
	`, id).Scan(&c.ID, &c.BCCSlug)
	if err == sql.ErrNoRows {
		return nil, ingest.ErrCompanyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find company: %w", err)
	}
	return c, nil
}
