package deal

import (
	"context"
	"sync"
	"testing"

	"github.com/ignite/crm-ingest/internal/domain"
)

type mockRepo struct {
	mu    sync.Mutex
	byID  map[string]*domain.Deal
	deals []*domain.Deal
}

func newMockRepo() *mockRepo {
	return &mockRepo{byID: make(map[string]*domain.Deal)}
}

func (m *mockRepo) Create(_ context.Context, d *domain.Deal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[d.ID]; ok {
		return nil
	}
	for _, other := range m.deals {
		if other.PersonID == d.PersonID && other.Status == domain.DealOpen {
			return ErrOpenDealExists
		}
	}
	stored := *d
	m.byID[d.ID] = &stored
	m.deals = append(m.deals, &stored)
	return nil
}

func (m *mockRepo) FindByID(_ context.Context, id string) (*domain.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (m *mockRepo) FindOpenByPerson(_ context.Context, personID string) (*domain.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.deals {
		if d.PersonID == personID && d.Status == domain.DealOpen {
			return d, nil
		}
	}
	return nil, ErrNotFound
}

var testPerson = &domain.Person{
	ID:          "p-1",
	CompanyID:   "c-1",
	Email:       "jane@example.com",
	DisplayName: "Jane Roe",
}

func TestMaybeCreate_FirstContactOpensDeal(t *testing.T) {
	svc := NewService(newMockRepo(), Options{PipelineID: "pipe-1", StageID: "stage-1"})

	d, created, err := svc.MaybeCreate(context.Background(), "deal-1", testPerson, true)
	if err != nil {
		t.Fatalf("MaybeCreate: %v", err)
	}
	if !created {
		t.Error("first contact should create a deal")
	}
	if d.Status != domain.DealOpen {
		t.Errorf("status = %s, want open", d.Status)
	}
	if d.PipelineID != "pipe-1" || d.StageID != "stage-1" {
		t.Errorf("deal not placed in configured pipeline/stage: %+v", d)
	}
	if d.Title != "Inbound lead: Jane Roe" {
		t.Errorf("title = %q", d.Title)
	}
}

func TestMaybeCreate_RepeatContactIsNoop(t *testing.T) {
	svc := NewService(newMockRepo(), Options{PipelineID: "pipe-1", StageID: "stage-1"})

	d, created, err := svc.MaybeCreate(context.Background(), "deal-1", testPerson, false)
	if err != nil {
		t.Fatalf("MaybeCreate: %v", err)
	}
	if created || d != nil {
		t.Errorf("repeat contact without attach policy should do nothing, got %+v created=%v", d, created)
	}
}

func TestMaybeCreate_AttachPolicyReturnsExistingOpenDeal(t *testing.T) {
	svc := NewService(newMockRepo(), Options{
		PipelineID: "pipe-1", StageID: "stage-1", AttachToExisting: true,
	})
	ctx := context.Background()

	first, created, err := svc.MaybeCreate(ctx, "deal-1", testPerson, true)
	if err != nil || !created {
		t.Fatalf("seed deal: created=%v err=%v", created, err)
	}

	attached, created, err := svc.MaybeCreate(ctx, "deal-2", testPerson, false)
	if err != nil {
		t.Fatalf("MaybeCreate: %v", err)
	}
	if created {
		t.Error("attach must not create")
	}
	if attached == nil || attached.ID != first.ID {
		t.Errorf("attach should return the existing open deal, got %+v", attached)
	}
}

func TestMaybeCreate_LostRaceReturnsWinner(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, Options{PipelineID: "pipe-1", StageID: "stage-1"})
	ctx := context.Background()

	winner, _, err := svc.MaybeCreate(ctx, "deal-winner", testPerson, true)
	if err != nil {
		t.Fatalf("winner create: %v", err)
	}

	// A second creator still believes this is first contact.
	loser, created, err := svc.MaybeCreate(ctx, "deal-loser", testPerson, true)
	if err != nil {
		t.Fatalf("loser create: %v", err)
	}
	if created {
		t.Error("loser must not report created=true")
	}
	if loser.ID != winner.ID {
		t.Errorf("loser got %s, want winner %s", loser.ID, winner.ID)
	}
}

func TestMaybeCreate_ConcurrentFirstContactsYieldOneOpenDeal(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, Options{PipelineID: "pipe-1", StageID: "stage-1"})
	ctx := context.Background()

	const n = 25
	var wg sync.WaitGroup
	createdCount := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, created, err := svc.MaybeCreate(ctx, "deal-"+string(rune('a'+i)), testPerson, true)
			if err != nil {
				t.Errorf("MaybeCreate: %v", err)
				return
			}
			createdCount <- created
		}(i)
	}
	wg.Wait()
	close(createdCount)

	creates := 0
	for c := range createdCount {
		if c {
			creates++
		}
	}
	if creates != 1 {
		t.Errorf("created count = %d, want exactly 1", creates)
	}
	if n := len(repo.deals); n != 1 {
		t.Errorf("stored deals = %d, want 1", n)
	}
}
