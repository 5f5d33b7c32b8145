package deal

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/crm-ingest/internal/domain"
)

// Options configures deal auto-creation.
type Options struct {
	// PipelineID and StageID place auto-created deals; stage validity is
	// owned by the pipeline collaborator, not checked here.
	PipelineID string
	StageID    string

	// AttachToExisting returns the person's open deal on repeat contact
	// instead of doing nothing.
	AttachToExisting bool
}

// Service decides whether an inbound event produces a deal.
type Service struct {
	repo Repository
	opts Options
}

func NewService(repo Repository, opts Options) *Service {
	return &Service{repo: repo, opts: opts}
}

// MaybeCreate creates an open deal for the person when the triggering event
// is their first contact. The caller supplies a deterministic id so replays
// land on the same deal. Returns the resulting deal (nil when no deal
// applies) and whether this call created it.
//
// A lost create race is not an error: the concurrent winner's open deal is
// read back and returned with created=false.
func (s *Service) MaybeCreate(ctx context.Context, id string, person *domain.Person, firstContact bool) (*domain.Deal, bool, error) {
	if !firstContact {
		if !s.opts.AttachToExisting {
			return nil, false, nil
		}
		existing, err := s.repo.FindOpenByPerson(ctx, person.ID)
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	d := &domain.Deal{
		ID:         id,
		CompanyID:  person.CompanyID,
		PersonID:   person.ID,
		PipelineID: s.opts.PipelineID,
		StageID:    s.opts.StageID,
		Title:      fmt.Sprintf("Inbound lead: %s", person.DisplayName),
		Status:     domain.DealOpen,
	}
	err := s.repo.Create(ctx, d)
	if errors.Is(err, ErrOpenDealExists) {
		winner, ferr := s.repo.FindOpenByPerson(ctx, person.ID)
		if ferr != nil {
			return nil, false, ferr
		}
		return winner, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return d, true, nil
}

// Get loads a deal by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.Deal, error) {
	return s.repo.FindByID(ctx, id)
}

// OpenForPerson loads the person's open deal, or ErrNotFound.
func (s *Service) OpenForPerson(ctx context.Context, personID string) (*domain.Deal, error) {
	return s.repo.FindOpenByPerson(ctx, personID)
}
