package activity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ignite/crm-ingest/internal/domain"
)

type mockRepo struct {
	mu      sync.Mutex
	nextSeq int64
	byID    map[string]*domain.Activity
	ordered []*domain.Activity
}

func newMockRepo() *mockRepo {
	return &mockRepo{byID: make(map[string]*domain.Activity)}
}

func (m *mockRepo) Create(_ context.Context, act *domain.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byID[act.ID]; ok {
		*act = *existing
		return nil
	}
	m.nextSeq++
	act.Seq = m.nextSeq
	act.CreatedAt = time.Now().UTC()
	stored := *act
	m.byID[act.ID] = &stored
	m.ordered = append(m.ordered, &stored)
	return nil
}

func (m *mockRepo) FindByID(_ context.Context, id string) (*domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	act, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return act, nil
}

func (m *mockRepo) CountForPerson(_ context.Context, personID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, act := range m.ordered {
		if act.PersonID == personID {
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) Timeline(_ context.Context, personID string, limit, offset int) ([]*domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Activity
	for _, act := range m.ordered {
		if act.PersonID == personID {
			out = append(out, act)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func TestRecord_AssignsSeqAndTimestamp(t *testing.T) {
	svc := NewService(newMockRepo())

	act, err := svc.Record(context.Background(), &domain.Activity{
		ID:       "act-1",
		PersonID: "p-1",
		Type:     domain.ActivityEmailReceived,
		Summary:  "Email from jane@example.com",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if act.Seq == 0 {
		t.Error("seq not assigned")
	}
	if act.OccurredAt.IsZero() {
		t.Error("occurred_at not defaulted")
	}
}

func TestRecord_RejectsInvalidType(t *testing.T) {
	svc := NewService(newMockRepo())

	_, err := svc.Record(context.Background(), &domain.Activity{
		ID:       "act-1",
		PersonID: "p-1",
		Type:     domain.ActivityType("phone_call"),
	})
	if err != ErrInvalidType {
		t.Fatalf("err = %v, want ErrInvalidType", err)
	}
}

func TestRecord_RejectsMissingPerson(t *testing.T) {
	svc := NewService(newMockRepo())

	_, err := svc.Record(context.Background(), &domain.Activity{
		ID:   "act-1",
		Type: domain.ActivityFormSubmitted,
	})
	if err != ErrInvalidPerson {
		t.Fatalf("err = %v, want ErrInvalidPerson", err)
	}
}

func TestRecord_SameIDIsIdempotent(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	first, err := svc.Record(ctx, &domain.Activity{
		ID: "act-dup", PersonID: "p-1", Type: domain.ActivityFormSubmitted, Summary: "one",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	second, err := svc.Record(ctx, &domain.Activity{
		ID: "act-dup", PersonID: "p-1", Type: domain.ActivityFormSubmitted, Summary: "one",
	})
	if err != nil {
		t.Fatalf("Record again: %v", err)
	}
	if second.Seq != first.Seq {
		t.Errorf("seq changed on replay: %d vs %d", first.Seq, second.Seq)
	}

	n, _ := svc.repo.CountForPerson(ctx, "p-1")
	if n != 1 {
		t.Errorf("stored activities = %d, want 1", n)
	}
}

func TestTimeline_InsertionOrder(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		if _, err := svc.Record(ctx, &domain.Activity{
			ID: id, PersonID: "p-1", Type: domain.ActivityEmailReceived,
		}); err != nil {
			t.Fatalf("Record(%s): %v", id, err)
		}
	}

	got, err := svc.Timeline(ctx, "p-1", 10, 0)
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(got) != len(ids) {
		t.Fatalf("len = %d, want %d", len(got), len(ids))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Seq <= got[i-1].Seq {
			t.Errorf("timeline out of order at %d: %d <= %d", i, got[i].Seq, got[i-1].Seq)
		}
	}
}

func TestIsFirstContact(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	first, err := svc.IsFirstContact(ctx, "p-1")
	if err != nil {
		t.Fatalf("IsFirstContact: %v", err)
	}
	if !first {
		t.Error("person with no activities should be first contact")
	}

	if _, err := svc.Record(ctx, &domain.Activity{
		ID: "a1", PersonID: "p-1", Type: domain.ActivityEmailReceived,
	}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	first, err = svc.IsFirstContact(ctx, "p-1")
	if err != nil {
		t.Fatalf("IsFirstContact: %v", err)
	}
	if first {
		t.Error("person with an activity is not first contact")
	}
}
