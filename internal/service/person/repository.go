package person

import (
	"context"
	"time"

	"github.com/ignite/crm-ingest/internal/domain"
)

// Repository defines the data access contract for people.
type Repository interface {
	// FindByEmail returns the person for (companyID, normalized email),
	// or ErrNotFound.
	FindByEmail(ctx context.Context, companyID, email string) (*domain.Person, error)

	// FindByID returns the person by id, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*domain.Person, error)

	// Create inserts a new person. Returns ErrExists when the
	// (company_id, email) uniqueness constraint rejects the row.
	Create(ctx context.Context, p *domain.Person) error

	// RecordEngagement bumps the open/click counters and last-engaged
	// timestamp. Derived data; exact counts under crash are not guaranteed.
	RecordEngagement(ctx context.Context, personID string, kind domain.EngagementKind, at time.Time) error
}
