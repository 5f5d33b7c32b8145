package compose

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ignite/crm-ingest/internal/domain"
	"github.com/ignite/crm-ingest/internal/service/activity"
	"github.com/ignite/crm-ingest/internal/service/person"
	"github.com/ignite/crm-ingest/internal/service/tracker"
)

type stubPersonRepo struct {
	mu     sync.Mutex
	people map[string]*domain.Person
}

func (r *stubPersonRepo) FindByEmail(_ context.Context, companyID, email string) (*domain.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.people {
		if p.CompanyID == companyID && p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, person.ErrNotFound
}

func (r *stubPersonRepo) FindByID(_ context.Context, id string) (*domain.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.people[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, person.ErrNotFound
}

func (r *stubPersonRepo) Create(_ context.Context, p *domain.Person) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.people[p.ID] = &cp
	return nil
}

func (r *stubPersonRepo) RecordEngagement(context.Context, string, domain.EngagementKind, time.Time) error {
	return nil
}

type stubActivityRepo struct {
	mu   sync.Mutex
	byID map[string]*domain.Activity
	seq  int64
}

func (r *stubActivityRepo) Create(_ context.Context, act *domain.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byID[act.ID]; ok {
		*act = *existing
		return nil
	}
	r.seq++
	act.Seq = r.seq
	act.CreatedAt = time.Now().UTC()
	cp := *act
	r.byID[act.ID] = &cp
	return nil
}

func (r *stubActivityRepo) FindByID(_ context.Context, id string) (*domain.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if act, ok := r.byID[id]; ok {
		cp := *act
		return &cp, nil
	}
	return nil, activity.ErrNotFound
}

func (r *stubActivityRepo) CountForPerson(_ context.Context, personID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, act := range r.byID {
		if act.PersonID == personID {
			n++
		}
	}
	return n, nil
}

func (r *stubActivityRepo) Timeline(context.Context, string, int, int) ([]*domain.Activity, error) {
	return nil, nil
}

type stubTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.TrackingToken
}

func (r *stubTokenRepo) CreateToken(_ context.Context, tok *domain.TrackingToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *tok
	r.tokens[tok.Token] = &cp
	return nil
}

func (r *stubTokenRepo) FindToken(_ context.Context, token string) (*domain.TrackingToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tok, ok := r.tokens[token]; ok {
		cp := *tok
		return &cp, nil
	}
	return nil, tracker.ErrUnknownToken
}

func (r *stubTokenRepo) InsertEvent(context.Context, *domain.EngagementEvent) error { return nil }

func (r *stubTokenRepo) EventsForToken(context.Context, string) ([]*domain.EngagementEvent, error) {
	return nil, nil
}

func newTestService(t *testing.T) (*Service, *stubActivityRepo, *stubTokenRepo) {
	t.Helper()
	peopleRepo := &stubPersonRepo{people: map[string]*domain.Person{
		"p-1": {ID: "p-1", CompanyID: "c-acme", Email: "lead@example.com", DisplayName: "Ada Lovelace"},
	}}
	actRepo := &stubActivityRepo{byID: make(map[string]*domain.Activity)}
	tokRepo := &stubTokenRepo{tokens: make(map[string]*domain.TrackingToken)}

	people := person.NewService(peopleRepo)
	activities := activity.NewService(actRepo)
	trk := tracker.NewService(tokRepo, nil, "https://t.example.com", "secret", 0)
	return NewService(people, activities, trk), actRepo, tokRepo
}

func TestCompose_RendersAndInstruments(t *testing.T) {
	svc, actRepo, tokRepo := newTestService(t)

	email, err := svc.Compose(context.Background(), Request{
		CompanyID: "c-acme",
		PersonID:  "p-1",
		Subject:   "Hi {{ display_name }}",
		BodyHTML:  `<html><body><p>Hello {{ display_name }},</p><a href="https://example.com/pricing">Pricing</a></body></html>`,
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	if email.Subject != "Hi Ada Lovelace" {
		t.Errorf("subject = %q", email.Subject)
	}
	if !strings.Contains(email.HTML, "Hello Ada Lovelace,") {
		t.Errorf("body not rendered: %q", email.HTML)
	}
	if strings.Contains(email.HTML, `href="https://example.com/pricing"`) {
		t.Error("original link left untracked")
	}
	if !strings.Contains(email.HTML, "/t/c/"+email.Token) {
		t.Error("click redirect missing from body")
	}
	if !strings.Contains(email.HTML, `<img src="https://t.example.com/t/o/`+email.Token+`.gif"`) {
		t.Error("open pixel missing from body")
	}
	if !strings.Contains(email.HTML, `</body>`) || !strings.HasSuffix(strings.TrimSpace(email.HTML), "</body></html>") {
		t.Errorf("pixel not injected before </body>: %q", email.HTML)
	}

	act, err := actRepo.FindByID(context.Background(), email.ActivityID)
	if err != nil {
		t.Fatalf("send activity not recorded: %v", err)
	}
	if act.Type != domain.ActivityEmailSent {
		t.Errorf("activity type = %q", act.Type)
	}
	if act.Summary != "Email sent: Hi Ada Lovelace" {
		t.Errorf("summary = %q", act.Summary)
	}

	tok, err := tokRepo.FindToken(context.Background(), email.Token)
	if err != nil {
		t.Fatalf("token not stored: %v", err)
	}
	if tok.ActivityID != email.ActivityID {
		t.Errorf("token activity = %q, want %q", tok.ActivityID, email.ActivityID)
	}
	if len(tok.Links) != 1 || tok.Links[0] != "https://example.com/pricing" {
		t.Errorf("token links = %v", tok.Links)
	}
}

func TestCompose_DefaultFilterAndNoBody(t *testing.T) {
	svc, _, _ := newTestService(t)

	email, err := svc.Compose(context.Background(), Request{
		CompanyID: "c-acme",
		PersonID:  "p-1",
		Subject:   "{{ nickname | default: \"there\" }}",
		BodyHTML:  "plain text, no body tag",
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if email.Subject != "there" {
		t.Errorf("default filter: subject = %q", email.Subject)
	}
	if !strings.HasPrefix(email.HTML, "plain text, no body tag<img src=") {
		t.Errorf("pixel must be appended when no </body> exists: %q", email.HTML)
	}
}

func TestCompose_CrossCompanyPersonRejected(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Compose(context.Background(), Request{
		CompanyID: "c-other",
		PersonID:  "p-1",
		Subject:   "s",
		BodyHTML:  "b",
	})
	if err != ErrPersonNotFound {
		t.Fatalf("err = %v, want ErrPersonNotFound", err)
	}
}

func TestCompose_UnknownPerson(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Compose(context.Background(), Request{
		CompanyID: "c-acme",
		PersonID:  "nope",
		Subject:   "s",
		BodyHTML:  "b",
	})
	if err != ErrPersonNotFound {
		t.Fatalf("err = %v, want ErrPersonNotFound", err)
	}
}

func TestExtractLinks_DedupesAndOrders(t *testing.T) {
	html := `<a href="https://a.example.com">a</a>` +
		`<a href="https://b.example.com">b</a>` +
		`<a href="https://a.example.com">a again</a>` +
		`<a href="/relative">skip</a>`
	links := extractLinks(html)
	if len(links) != 2 || links[0] != "https://a.example.com" || links[1] != "https://b.example.com" {
		t.Errorf("links = %v", links)
	}
}
