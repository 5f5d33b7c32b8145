package deal

import (
	"context"

	"github.com/ignite/crm-ingest/internal/domain"
)

// Repository persists pipeline deals.
type Repository interface {
	// Create inserts the deal. Returns ErrOpenDealExists when the person
	// already has an open deal (the partial unique index on open deals).
	Create(ctx context.Context, d *domain.Deal) error

	// FindByID loads a deal, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*domain.Deal, error)

	// FindOpenByPerson loads the person's open deal, or ErrNotFound.
	FindOpenByPerson(ctx context.Context, personID string) (*domain.Deal, error)
}
