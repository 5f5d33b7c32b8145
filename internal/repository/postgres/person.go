package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/crm-ingest/internal/domain"
	"github.com/ignite/crm-ingest/internal/service/person"
)

// PersonRepo implements person.Repository against PostgreSQL. The
// (company_id, email) unique constraint is the matcher's source of truth for
// concurrent create races.
type PersonRepo struct{ db *sql.DB }

// NewPersonRepo creates a Postgres-backed person repository.
func NewPersonRepo(db *sql.DB) *PersonRepo { return &PersonRepo{db: db} }

const personColumns = `
	id, company_id, email, display_name, owner_user_id, COALESCE(source,''),
	total_opens, total_clicks, last_engaged_at, created_at, updated_at`

func scanPerson(row *sql.Row) (*domain.Person, error) {
	p := &domain.Person{}
	err := row.Scan(
		&p.ID, &p.CompanyID, &p.Email, &p.DisplayName, &p.OwnerUserID, &p.Source,
		&p.TotalOpens, &p.TotalClicks, &p.LastEngagedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, person.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan person: %w", err)
	}
	return p, nil
}

func (r *PersonRepo) FindByEmail(ctx context.Context, companyID, email string) (*domain.Person, error) {
	return scanPerson(r.db.QueryRowContext(ctx, `
		SELECT`+personColumns+`
		FROM crm_people
		WHERE company_id = $1 AND email = $2
	`, companyID, email))
}

func (r *PersonRepo) FindByID(ctx context.Context, id string) (*domain.Person, error) {
	return scanPerson(r.db.QueryRowContext(ctx, `
		SELECT`+personColumns+`
		FROM crm_people
		WHERE id = $1
	`, id))
}

func (r *PersonRepo) Create(ctx context.Context, p *domain.Person) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO crm_people (id, company_id, email, display_name, owner_user_id, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at
	`, p.ID, p.CompanyID, p.Email, p.DisplayName, p.OwnerUserID, p.Source).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return person.ErrExists
	}
	if err != nil {
		return fmt.Errorf("create person: %w", err)
	}
	return nil
}

func (r *PersonRepo) RecordEngagement(ctx context.Context, personID string, kind domain.EngagementKind, at time.Time) error {
	col := "total_opens"
	if kind == domain.EngagementClick {
		col = "total_clicks"
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE crm_people
		SET %s = %s + 1,
		    last_engaged_at = GREATEST(COALESCE(last_engaged_at, $2), $2),
		    updated_at = NOW()
		WHERE id = $1
	`, col, col), personID, at)
	if err != nil {
		return fmt.Errorf("record engagement: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return person.ErrNotFound
	}
	return nil
}
