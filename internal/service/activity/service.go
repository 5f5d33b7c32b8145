package activity

import (
	"context"
	"strings"
	"time"

	"github.com/ignite/crm-ingest/internal/domain"
)

const defaultTimelineLimit = 100

// Service validates and records timeline activities.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record appends act to its person's timeline and returns the stored row.
// The caller supplies a deterministic ID, so recording the same event
// twice returns the same activity both times.
func (s *Service) Record(ctx context.Context, act *domain.Activity) (*domain.Activity, error) {
	if !act.Type.Valid() {
		return nil, ErrInvalidType
	}
	if strings.TrimSpace(act.PersonID) == "" {
		return nil, ErrInvalidPerson
	}
	if act.OccurredAt.IsZero() {
		act.OccurredAt = time.Now().UTC()
	}
	if err := s.repo.Create(ctx, act); err != nil {
		return nil, err
	}
	return act, nil
}

// Get loads a single activity by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.Activity, error) {
	return s.repo.FindByID(ctx, id)
}

// IsFirstContact reports whether the person has no recorded activities yet.
// Callers check this before recording the activity that would be first.
func (s *Service) IsFirstContact(ctx context.Context, personID string) (bool, error) {
	n, err := s.repo.CountForPerson(ctx, personID)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Timeline returns a page of the person's activities in insertion order.
func (s *Service) Timeline(ctx context.Context, personID string, limit, offset int) ([]*domain.Activity, error) {
	if limit <= 0 || limit > 1000 {
		limit = defaultTimelineLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.Timeline(ctx, personID, limit, offset)
}
