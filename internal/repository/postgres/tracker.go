package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/crm-ingest/internal/domain"
	"github.com/ignite/crm-ingest/internal/service/tracker"
)

// TrackerRepo implements tracker.Repository against PostgreSQL.
type TrackerRepo struct{ db *sql.DB }

// NewTrackerRepo creates a Postgres-backed tracking repository.
func NewTrackerRepo(db *sql.DB) *TrackerRepo { return &TrackerRepo{db: db} }

func (r *TrackerRepo) CreateToken(ctx context.Context, tok *domain.TrackingToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO crm_tracking_tokens (token, company_id, activity_id, links, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, tok.Token, tok.CompanyID, tok.ActivityID, pq.Array(tok.Links), tok.CreatedAt)
	if err != nil {
		return fmt.Errorf("create tracking token: %w", err)
	}
	return nil
}

func (r *TrackerRepo) FindToken(ctx context.Context, token string) (*domain.TrackingToken, error) {
	tok := &domain.TrackingToken{}
	err := r.db.QueryRowContext(ctx, `
		SELECT token, company_id, activity_id, links, created_at
		FROM crm_tracking_tokens
		WHERE token = $1
	`, token).Scan(&tok.Token, &tok.CompanyID, &tok.ActivityID, pq.Array(&tok.Links), &tok.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, tracker.ErrUnknownToken
	}
	if err != nil {
		return nil, fmt.Errorf("find tracking token: %w", err)
	}
	return tok, nil
}

func (r *TrackerRepo) InsertEvent(ctx context.Context, evt *domain.EngagementEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO crm_engagement_events (id, token, kind, link_url, ip_address, user_agent, device_type, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, evt.ID, evt.Token, evt.Kind, evt.LinkURL, evt.IPAddress, evt.UserAgent, evt.DeviceType, evt.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert engagement event: %w", err)
	}
	return nil
}

func (r *TrackerRepo) EventsForToken(ctx context.Context, token string) ([]*domain.EngagementEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, token, kind, COALESCE(link_url,''), COALESCE(ip_address,''),
		       COALESCE(user_agent,''), COALESCE(device_type,''), occurred_at
		FROM crm_engagement_events
		WHERE token = $1
		ORDER BY occurred_at ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("list engagement events: %w", err)
	}
	defer rows.Close()

	var out []*domain.EngagementEvent
	for rows.Next() {
		evt := &domain.EngagementEvent{}
		if err := rows.Scan(
			&evt.ID, &evt.Token, &evt.Kind, &evt.LinkURL, &evt.IPAddress,
			&evt.UserAgent, &evt.DeviceType, &evt.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("scan engagement event: %w", err)
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}
