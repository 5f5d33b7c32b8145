package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/crm-ingest/internal/domain"
	"github.com/ignite/crm-ingest/internal/service/activity"
)

// ActivityRepo implements activity.Repository against PostgreSQL. The seq
// column is a BIGSERIAL, so timeline order is insertion order.
type ActivityRepo struct{ db *sql.DB }

// NewActivityRepo creates a Postgres-backed activity repository.
func NewActivityRepo(db *sql.DB) *ActivityRepo { return &ActivityRepo{db: db} }

func (r *ActivityRepo) Create(ctx context.Context, act *domain.Activity) error {
	// Deterministic IDs make replays land on the existing row; in that case
	// the insert is skipped and the stored row is loaded back.
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO crm_activities (id, company_id, person_id, type, user_id, summary, payload, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (id) DO NOTHING
	`, act.ID, act.CompanyID, act.PersonID, act.Type, act.UserID, act.Summary, act.Payload, act.OccurredAt)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
		return activity.ErrInvalidPerson
	}
	if err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 || act.Seq == 0 {
		stored, err := r.FindByID(ctx, act.ID)
		if err != nil {
			return err
		}
		*act = *stored
	}
	return nil
}

func (r *ActivityRepo) FindByID(ctx context.Context, id string) (*domain.Activity, error) {
	act := &domain.Activity{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, company_id, person_id, type, user_id, summary, COALESCE(payload,''),
		       occurred_at, seq, created_at
		FROM crm_activities
		WHERE id = $1
	`, id).Scan(
		&act.ID, &act.CompanyID, &act.PersonID, &act.Type, &act.UserID, &act.Summary,
		&act.Payload, &act.OccurredAt, &act.Seq, &act.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, activity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	return act, nil
}

func (r *ActivityRepo) CountForPerson(ctx context.Context, personID string) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM crm_activities WHERE person_id = $1
	`, personID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count activities: %w", err)
	}
	return n, nil
}

func (r *ActivityRepo) Timeline(ctx context.Context, personID string, limit, offset int) ([]*domain.Activity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, company_id, person_id, type, user_id, summary, COALESCE(payload,''),
		       occurred_at, seq, created_at
		FROM crm_activities
		WHERE person_id = $1
		ORDER BY seq ASC
		LIMIT $2 OFFSET $3
	`, personID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}
	defer rows.Close()

	var out []*domain.Activity
	for rows.Next() {
		act := &domain.Activity{}
		if err := rows.Scan(
			&act.ID, &act.CompanyID, &act.PersonID, &act.Type, &act.UserID, &act.Summary,
			&act.Payload, &act.OccurredAt, &act.Seq, &act.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, act)
	}
	return out, rows.Err()
}
