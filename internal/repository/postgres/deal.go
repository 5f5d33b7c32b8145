package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/crm-ingest/internal/domain"
	"github.com/ignite/crm-ingest/internal/service/deal"
)

// DealRepo implements deal.Repository against PostgreSQL. The partial unique
// index on (person_id) WHERE status = 'open' is what breaks concurrent
// auto-create races.
type DealRepo struct{ db *sql.DB }

// NewDealRepo creates a Postgres-backed deal repository.
func NewDealRepo(db *sql.DB) *DealRepo { return &DealRepo{db: db} }

func (r *DealRepo) Create(ctx context.Context, d *domain.Deal) error {
	// Replaying the same deterministic ID is a no-op; a different ID hitting
	// the one-open-deal index means a concurrent creator won.
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO crm_deals (id, company_id, person_id, pipeline_id, stage_id, title, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (id) DO NOTHING
	`, d.ID, d.CompanyID, d.PersonID, d.PipelineID, d.StageID, d.Title, d.Status)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return deal.ErrOpenDealExists
	}
	if err != nil {
		return fmt.Errorf("create deal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		stored, err := r.FindByID(ctx, d.ID)
		if err != nil {
			return err
		}
		*d = *stored
	}
	return nil
}

func (r *DealRepo) FindByID(ctx context.Context, id string) (*domain.Deal, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, `
		SELECT id, company_id, person_id, pipeline_id, stage_id, title, status, created_at, updated_at
		FROM crm_deals
		WHERE id = $1
	`, id))
}

func (r *DealRepo) FindOpenByPerson(ctx context.Context, personID string) (*domain.Deal, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, `
		SELECT id, company_id, person_id, pipeline_id, stage_id, title, status, created_at, updated_at
		FROM crm_deals
		WHERE person_id = $1 AND status = 'open'
	`, personID))
}

func (r *DealRepo) scanOne(row *sql.Row) (*domain.Deal, error) {
	d := &domain.Deal{}
	err := row.Scan(
		&d.ID, &d.CompanyID, &d.PersonID, &d.PipelineID, &d.StageID,
		&d.Title, &d.Status, &d.CreatedAt, &d.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, deal.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan deal: %w", err)
	}
	return d, nil
}
