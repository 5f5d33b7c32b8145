package tracker

import (
	"context"

	"github.com/ignite/crm-ingest/internal/domain"
)

// Repository persists tracking tokens and engagement events.
type Repository interface {
	// CreateToken stores a freshly minted token.
	CreateToken(ctx context.Context, tok *domain.TrackingToken) error

	// FindToken loads a token, or ErrUnknownToken.
	FindToken(ctx context.Context, token string) (*domain.TrackingToken, error)

	// InsertEvent appends an engagement event. Events are never updated.
	InsertEvent(ctx context.Context, evt *domain.EngagementEvent) error

	// EventsForToken returns a token's events in occurrence order.
	EventsForToken(ctx context.Context, token string) ([]*domain.EngagementEvent, error)
}
