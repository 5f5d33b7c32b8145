package activity

import (
	"context"

	"github.com/ignite/crm-ingest/internal/domain"
)

// Repository persists timeline activities.
type Repository interface {
	// Create inserts the activity. Inserting an ID that already exists is a
	// no-op; in both cases the stored row (with its storage-assigned seq and
	// created_at) is loaded back into act. Returns ErrInvalidPerson when the
	// referenced person does not exist.
	Create(ctx context.Context, act *domain.Activity) error

	// FindByID loads a single activity, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*domain.Activity, error)

	// CountForPerson returns how many activities a person has.
	CountForPerson(ctx context.Context, personID string) (int64, error)

	// Timeline returns a person's activities ordered by seq ascending.
	Timeline(ctx context.Context, personID string, limit, offset int) ([]*domain.Activity, error)
}
