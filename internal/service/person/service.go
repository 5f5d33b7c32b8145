package person

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/crm-ingest/internal/domain"
)

// Service implements person resolution. It is safe for concurrent use.
type Service struct {
	repo Repository
}

// NewService creates a person service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Resolve maps an email address to the company's Person record, creating one
// when none exists. The returned bool reports whether this call created the
// person. A create race against another instance is resolved by re-reading
// the winner's row, so the loser still gets (winner, false).
func (s *Service) Resolve(ctx context.Context, companyID, email string, hints domain.PersonHints) (*domain.Person, bool, error) {
	if companyID == "" {
		return nil, false, fmt.Errorf("company id is required")
	}
	if !domain.ValidEmail(email) {
		return nil, false, ErrInvalidEmail
	}
	email = domain.NormalizeEmail(email)

	existing, err := s.repo.FindByEmail(ctx, companyID, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("lookup person: %w", err)
	}

	now := time.Now().UTC()
	p := &domain.Person{
		ID:          uuid.New().String(),
		CompanyID:   companyID,
		Email:       email,
		DisplayName: hints.DisplayName(email),
		Source:      hints.Source,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.repo.Create(ctx, p)
	if errors.Is(err, ErrExists) {
		// Lost the create race: the unique constraint is the source of
		// truth, so return whoever won.
		winner, ferr := s.repo.FindByEmail(ctx, companyID, email)
		if ferr != nil {
			return nil, false, fmt.Errorf("re-read person after create race: %w", ferr)
		}
		return winner, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("create person: %w", err)
	}
	return p, true, nil
}

// Get returns a person by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Person, error) {
	return s.repo.FindByID(ctx, id)
}

// RecordEngagement updates a person's engagement counters from the stream
// consumer. Failures are the caller's to log; counters are derived data.
func (s *Service) RecordEngagement(ctx context.Context, personID string, kind domain.EngagementKind, at time.Time) error {
	return s.repo.RecordEngagement(ctx, personID, kind, at)
}
