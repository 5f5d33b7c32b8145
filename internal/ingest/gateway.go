package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/crm-ingest/internal/domain"
	"github.com/ignite/crm-ingest/internal/pkg/distlock"
	"github.com/ignite/crm-ingest/internal/pkg/logger"
	"github.com/ignite/crm-ingest/internal/service/activity"
	"github.com/ignite/crm-ingest/internal/service/deal"
	"github.com/ignite/crm-ingest/internal/service/ledger"
	"github.com/ignite/crm-ingest/internal/service/person"
	"github.com/ignite/crm-ingest/internal/service/tracker"
)

// CompanyDirectory resolves inbound BCC routing addresses to companies. The
// company table itself is owned by an external collaborator.
type CompanyDirectory interface {
	FindByBCCSlug(ctx context.Context, slug string) (*domain.Company, error)
}

// LockFactory builds a per-key distributed lock. Optional: the storage
// constraints are the race-breakers, locks only reduce wasted work.
type LockFactory func(key string, ttl time.Duration) distlock.DistLock

// EmailEvent is a BCC'd email delivered by the mail webhook.
type EmailEvent struct {
	From       string    `json:"from"`
	Recipients []string  `json:"recipients"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sent_at"`
	BCCAddress string    `json:"bcc_address"`

	// Outbound marks mail the company's user sent (and BCC'd to us); the
	// counterpart is then the first recipient rather than the sender.
	Outbound bool `json:"outbound"`
}

// FormEvent is a marketing-form submission delivered by the form webhook.
type FormEvent struct {
	CompanyID   string            `json:"company_id"`
	Email       string            `json:"email"`
	FirstName   string            `json:"first_name"`
	LastName    string            `json:"last_name"`
	Phone       string            `json:"phone"`
	CompanyName string            `json:"company_name"`
	Source      string            `json:"source"`
	Nonce       string            `json:"nonce"`
	Metadata    map[string]string `json:"metadata"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

// OpenEvent is a tracking-pixel fetch.
type OpenEvent struct {
	Token string
	Meta  tracker.ClientMeta
}

// ClickEvent is a tracked-link redirect request.
type ClickEvent struct {
	Token     string
	URL       string
	Signature string
	Meta      tracker.ClientMeta
}

// Result is the outcome of processing one inbound event. For deduplicated
// channels it is also the snapshot stored in the idempotency ledger, so a
// retry returns the first delivery's result byte for byte.
type Result struct {
	Channel       domain.Channel `json:"channel"`
	EventKey      string         `json:"event_key,omitempty"`
	PersonID      string         `json:"person_id,omitempty"`
	PersonCreated bool           `json:"person_created"`
	ActivityID    string         `json:"activity_id,omitempty"`
	DealID        string         `json:"deal_id,omitempty"`
	DealCreated   bool           `json:"deal_created"`
	EventID       string         `json:"event_id,omitempty"`
	Duplicate     bool           `json:"duplicate"`
}

// Gateway orchestrates the ingestion pipeline for all channels.
type Gateway struct {
	ledger     *ledger.Service
	people     *person.Service
	activities *activity.Service
	deals      *deal.Service
	tracker    *tracker.Service
	companies  CompanyDirectory
	locks      LockFactory
	lockTTL    time.Duration
}

func NewGateway(
	ledgerSvc *ledger.Service,
	people *person.Service,
	activities *activity.Service,
	deals *deal.Service,
	trackerSvc *tracker.Service,
	companies CompanyDirectory,
	locks LockFactory,
	lockTTL time.Duration,
) *Gateway {
	return &Gateway{
		ledger:     ledgerSvc,
		people:     people,
		activities: activities,
		deals:      deals,
		tracker:    trackerSvc,
		companies:  companies,
		locks:      locks,
		lockTTL:    lockTTL,
	}
}

// Ingest dispatches an event to its channel pipeline.
func (g *Gateway) Ingest(ctx context.Context, channel domain.Channel, payload interface{}) (*Result, error) {
	switch channel {
	case domain.ChannelBCCEmail:
		evt, ok := payload.(EmailEvent)
		if !ok {
			return nil, &ValidationError{Field: "payload", Message: "expected email event"}
		}
		return g.IngestEmail(ctx, evt)
	case domain.ChannelFormSubmission:
		evt, ok := payload.(FormEvent)
		if !ok {
			return nil, &ValidationError{Field: "payload", Message: "expected form event"}
		}
		return g.IngestForm(ctx, evt)
	case domain.ChannelTrackingOpen:
		evt, ok := payload.(OpenEvent)
		if !ok {
			return nil, &ValidationError{Field: "payload", Message: "expected open event"}
		}
		return g.IngestOpen(ctx, evt)
	case domain.ChannelTrackingClick:
		evt, ok := payload.(ClickEvent)
		if !ok {
			return nil, &ValidationError{Field: "payload", Message: "expected click event"}
		}
		return g.IngestClick(ctx, evt)
	default:
		return nil, ErrUnsupportedChannel
	}
}

// IngestEmail processes a BCC'd email: resolve the owning company from the
// BCC address, match the external counterpart, record the timeline activity.
func (g *Gateway) IngestEmail(ctx context.Context, evt EmailEvent) (*Result, error) {
	if err := validateEmail(evt); err != nil {
		return nil, err
	}

	company, err := g.companies.FindByBCCSlug(ctx, bccSlug(evt.BCCAddress))
	if err != nil {
		if errors.Is(err, ErrCompanyNotFound) {
			return nil, &ValidationError{Field: "bcc_address", Message: "no company is registered for this BCC address"}
		}
		// Directory outage: the sender must keep redelivering.
		return nil, &ProcessingError{Stage: "route", Err: err}
	}

	key := EmailEventKey(evt.From, strings.Join(evt.Recipients, ","), evt.Subject, evt.SentAt, evt.BCCAddress)
	if stored, err := g.lookupDuplicate(ctx, domain.ChannelBCCEmail, key); err != nil {
		return nil, err
	} else if stored != nil {
		return stored, nil
	}

	counterpart := evt.From
	actType := domain.ActivityEmailReceived
	if evt.Outbound {
		counterpart = evt.Recipients[0]
		actType = domain.ActivityEmailSent
	}

	p, created, err := g.people.Resolve(ctx, company.ID, counterpart, domain.PersonHints{Source: "bcc_email"})
	if err != nil {
		if errors.Is(err, person.ErrInvalidEmail) {
			return nil, &ValidationError{Field: "from", Message: "counterpart address is not a valid email"}
		}
		return nil, &ProcessingError{Stage: "match", Err: err}
	}

	payload, _ := json.Marshal(map[string]string{
		"from":    evt.From,
		"to":      strings.Join(evt.Recipients, ","),
		"subject": evt.Subject,
	})
	act, err := g.activities.Record(ctx, &domain.Activity{
		ID:         ActivityID(domain.ChannelBCCEmail, key),
		CompanyID:  company.ID,
		PersonID:   p.ID,
		Type:       actType,
		Summary:    emailSummary(actType, evt.Subject),
		Payload:    string(payload),
		OccurredAt: evt.SentAt,
	})
	if err != nil {
		return nil, &ProcessingError{Stage: "record", Err: err}
	}

	res := &Result{
		Channel:       domain.ChannelBCCEmail,
		EventKey:      key,
		PersonID:      p.ID,
		PersonCreated: created,
		ActivityID:    act.ID,
	}
	return g.commit(ctx, res)
}

// IngestForm processes a form submission: match or create the person, append
// the activity, and evaluate deal auto-creation for first contact.
func (g *Gateway) IngestForm(ctx context.Context, evt FormEvent) (*Result, error) {
	if err := validateForm(evt); err != nil {
		return nil, err
	}

	nonce := evt.Nonce
	if nonce == "" {
		nonce = evt.SubmittedAt.UTC().Format(time.RFC3339)
	}
	key := FormEventKey(evt.CompanyID, evt.Email, evt.Source, nonce)

	if stored, err := g.lookupDuplicate(ctx, domain.ChannelFormSubmission, key); err != nil {
		return nil, err
	} else if stored != nil {
		return stored, nil
	}

	// Serialize concurrent submissions for the same new address. Best
	// effort: if the lock is busy or unavailable we proceed anyway and let
	// the storage constraints break the race.
	if g.locks != nil {
		lock := g.locks(personLockKey(evt.CompanyID, evt.Email), g.lockTTL)
		if ok, err := lock.Acquire(ctx); err == nil && ok {
			defer lock.Release(ctx)
		}
	}

	p, created, err := g.people.Resolve(ctx, evt.CompanyID, evt.Email, domain.PersonHints{
		FirstName: evt.FirstName,
		LastName:  evt.LastName,
		Source:    evt.Source,
	})
	if err != nil {
		if errors.Is(err, person.ErrInvalidEmail) {
			return nil, &ValidationError{Field: "email", Message: "not a valid email address"}
		}
		return nil, &ProcessingError{Stage: "match", Err: err}
	}

	firstContact, err := g.activities.IsFirstContact(ctx, p.ID)
	if err != nil {
		return nil, &ProcessingError{Stage: "record", Err: err}
	}

	payload, _ := json.Marshal(struct {
		Phone       string            `json:"phone,omitempty"`
		CompanyName string            `json:"company_name,omitempty"`
		Source      string            `json:"source,omitempty"`
		Metadata    map[string]string `json:"metadata,omitempty"`
	}{evt.Phone, evt.CompanyName, evt.Source, evt.Metadata})

	act, err := g.activities.Record(ctx, &domain.Activity{
		ID:         ActivityID(domain.ChannelFormSubmission, key),
		CompanyID:  evt.CompanyID,
		PersonID:   p.ID,
		Type:       domain.ActivityFormSubmitted,
		Summary:    formSummary(evt.Source),
		Payload:    string(payload),
		OccurredAt: evt.SubmittedAt,
	})
	if err != nil {
		return nil, &ProcessingError{Stage: "record", Err: err}
	}

	res := &Result{
		Channel:       domain.ChannelFormSubmission,
		EventKey:      key,
		PersonID:      p.ID,
		PersonCreated: created,
		ActivityID:    act.ID,
	}

	d, dealCreated, err := g.deals.MaybeCreate(ctx, DealID(domain.ChannelFormSubmission, key), p, firstContact)
	if err != nil {
		return nil, &ProcessingError{Stage: "deal", Err: err}
	}
	if d != nil {
		res.DealID = d.ID
		res.DealCreated = dealCreated
	}

	return g.commit(ctx, res)
}

// IngestOpen records a tracking-pixel fetch. Tracking channels bypass the
// ledger: every delivery is a distinct engagement signal.
func (g *Gateway) IngestOpen(ctx context.Context, evt OpenEvent) (*Result, error) {
	e, err := g.tracker.RecordOpen(ctx, evt.Token, evt.Meta)
	if err != nil {
		return nil, err
	}
	return &Result{Channel: domain.ChannelTrackingOpen, EventID: e.ID}, nil
}

// IngestClick records a tracked-link click. The HTTP layer performs the
// redirect itself so that unknown tokens can still send the user through.
func (g *Gateway) IngestClick(ctx context.Context, evt ClickEvent) (*Result, error) {
	e, _, err := g.tracker.RecordClick(ctx, evt.Token, evt.URL, evt.Signature, evt.Meta)
	if err != nil {
		return nil, err
	}
	return &Result{Channel: domain.ChannelTrackingClick, EventID: e.ID}, nil
}

// lookupDuplicate returns the stored result when the key was already
// processed, nil when the event is new.
func (g *Gateway) lookupDuplicate(ctx context.Context, channel domain.Channel, key string) (*Result, error) {
	rec, err := g.ledger.Lookup(ctx, channel, key)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &ProcessingError{Stage: "dedup", Err: err}
	}
	return decodeStored(rec, key)
}

// commit writes the result snapshot into the ledger last. Every domain write
// before this point used a deterministic ID, so a crash before commit leaves
// rows a retry will land on again; a lost commit race returns the winner's
// snapshot instead of ours.
func (g *Gateway) commit(ctx context.Context, res *Result) (*Result, error) {
	snapshot, err := json.Marshal(res)
	if err != nil {
		return nil, &ProcessingError{Stage: "commit", Err: err}
	}
	rec, won, err := g.ledger.Commit(ctx, res.Channel, res.EventKey, string(snapshot))
	if err != nil {
		return nil, &ProcessingError{Stage: "commit", Err: err}
	}
	if !won {
		logger.Info("lost ledger race, returning winner's result",
			"channel", string(res.Channel), "event_key", res.EventKey)
		return decodeStored(rec, res.EventKey)
	}
	return res, nil
}

func decodeStored(rec *domain.IdempotencyRecord, key string) (*Result, error) {
	stored := &Result{}
	if err := json.Unmarshal([]byte(rec.Result), stored); err != nil {
		return nil, &ProcessingError{Stage: "dedup", Err: fmt.Errorf("corrupt ledger snapshot for %s: %w", key, err)}
	}
	stored.Duplicate = true
	return stored, nil
}

func validateEmail(evt EmailEvent) error {
	if !domain.ValidEmail(evt.From) {
		return &ValidationError{Field: "from", Message: "required and must be a valid email address"}
	}
	if len(evt.Recipients) == 0 {
		return &ValidationError{Field: "recipients", Message: "at least one recipient is required"}
	}
	if evt.Outbound && !domain.ValidEmail(evt.Recipients[0]) {
		return &ValidationError{Field: "recipients", Message: "first recipient must be a valid email address"}
	}
	if evt.SentAt.IsZero() {
		return &ValidationError{Field: "sent_at", Message: "required"}
	}
	if !strings.Contains(evt.BCCAddress, "@") {
		return &ValidationError{Field: "bcc_address", Message: "required and must be an email address"}
	}
	return nil
}

func validateForm(evt FormEvent) error {
	if strings.TrimSpace(evt.CompanyID) == "" {
		return &ValidationError{Field: "company_id", Message: "required"}
	}
	if !domain.ValidEmail(evt.Email) {
		return &ValidationError{Field: "email", Message: "required and must be a valid email address"}
	}
	if evt.SubmittedAt.IsZero() {
		return &ValidationError{Field: "submitted_at", Message: "required"}
	}
	return nil
}

// bccSlug extracts the routing slug from an address like acme@bcc.example.com.
func bccSlug(address string) string {
	at := strings.Index(address, "@")
	if at < 0 {
		return strings.ToLower(strings.TrimSpace(address))
	}
	return strings.ToLower(strings.TrimSpace(address[:at]))
}

func personLockKey(companyID, email string) string {
	return "crm:person:" + companyID + ":" + domain.NormalizeEmail(email)
}

func emailSummary(t domain.ActivityType, subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "(no subject)"
	}
	if t == domain.ActivityEmailSent {
		return "Email sent: " + subject
	}
	return "Email received: " + subject
}

func formSummary(source string) string {
	source = strings.TrimSpace(source)
	if source == "" {
		return "Form submitted"
	}
	return "Form submitted via " + source
}
