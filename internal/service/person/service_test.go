package person

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ignite/crm-ingest/internal/domain"
)

// mockRepo is an in-memory repository enforcing the (company, email)
// uniqueness constraint the way Postgres would.
type mockRepo struct {
	mu    sync.Mutex
	byKey map[string]*domain.Person
	byID  map[string]*domain.Person
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		byKey: make(map[string]*domain.Person),
		byID:  make(map[string]*domain.Person),
	}
}

func (m *mockRepo) key(companyID, email string) string {
	return companyID + "|" + email
}

func (m *mockRepo) FindByEmail(_ context.Context, companyID, email string) (*domain.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byKey[m.key(companyID, email)]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockRepo) FindByID(_ context.Context, id string) (*domain.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockRepo) Create(_ context.Context, p *domain.Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(p.CompanyID, p.Email)
	if _, exists := m.byKey[k]; exists {
		return ErrExists
	}
	m.byKey[k] = p
	m.byID[p.ID] = p
	return nil
}

func (m *mockRepo) RecordEngagement(_ context.Context, personID string, kind domain.EngagementKind, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[personID]
	if !ok {
		return ErrNotFound
	}
	switch kind {
	case domain.EngagementOpen:
		p.TotalOpens++
	case domain.EngagementClick:
		p.TotalClicks++
	}
	p.LastEngagedAt = &at
	return nil
}

const testCompanyID = "c0ffee00-0000-0000-0000-000000000001"

func TestResolve_CreatesOnFirstSighting(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	p, created, err := svc.Resolve(ctx, testCompanyID, "jane@example.com", domain.PersonHints{
		FirstName: "Jane", LastName: "Roe", Source: "form",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !created {
		t.Error("first sighting should create")
	}
	if p.DisplayName != "Jane Roe" {
		t.Errorf("DisplayName = %q, want %q", p.DisplayName, "Jane Roe")
	}
	if p.Email != "jane@example.com" {
		t.Errorf("Email = %q", p.Email)
	}
}

func TestResolve_NormalizationIsIdempotent(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	first, created, err := svc.Resolve(ctx, testCompanyID, "Jane@Example.com ", domain.PersonHints{})
	if err != nil || !created {
		t.Fatalf("first Resolve: created=%v err=%v", created, err)
	}

	second, created, err := svc.Resolve(ctx, testCompanyID, "jane@example.com", domain.PersonHints{})
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if created {
		t.Error("second Resolve must not create")
	}
	if second.ID != first.ID {
		t.Errorf("got two people for one address: %s vs %s", first.ID, second.ID)
	}
}

func TestResolve_DefaultNameFromLocalPart(t *testing.T) {
	svc := NewService(newMockRepo())

	p, _, err := svc.Resolve(context.Background(), testCompanyID, "sam.lee@example.com", domain.PersonHints{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.DisplayName != "sam.lee" {
		t.Errorf("DisplayName = %q, want local part", p.DisplayName)
	}
}

func TestResolve_RejectsInvalidEmail(t *testing.T) {
	svc := NewService(newMockRepo())

	for _, bad := range []string{"", "no-at-sign", "@example.com", "a@b"} {
		if _, _, err := svc.Resolve(context.Background(), testCompanyID, bad, domain.PersonHints{}); err == nil {
			t.Errorf("Resolve(%q) should fail", bad)
		}
	}
}

func TestResolve_CompaniesAreIsolated(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	a, _, _ := svc.Resolve(ctx, "company-a", "jane@example.com", domain.PersonHints{})
	b, createdB, err := svc.Resolve(ctx, "company-b", "jane@example.com", domain.PersonHints{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !createdB {
		t.Error("same email in another company must create a separate person")
	}
	if a.ID == b.ID {
		t.Error("people must be scoped per company")
	}
}

func TestResolve_ConcurrentCreatesYieldOnePerson(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	ids := make(chan string, n)
	createdCount := make(chan bool, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, created, err := svc.Resolve(ctx, testCompanyID, "racer@example.com", domain.PersonHints{})
			if err != nil {
				t.Errorf("Resolve: %v", err)
				return
			}
			ids <- p.ID
			createdCount <- created
		}()
	}
	wg.Wait()
	close(ids)
	close(createdCount)

	unique := map[string]bool{}
	for id := range ids {
		unique[id] = true
	}
	if len(unique) != 1 {
		t.Errorf("distinct person ids = %d, want 1", len(unique))
	}

	creates := 0
	for c := range createdCount {
		if c {
			creates++
		}
	}
	if creates != 1 {
		t.Errorf("created=true count = %d, want exactly 1", creates)
	}
}
