// Package compose renders outbound email bodies from Liquid templates and
// instruments them for engagement tracking: a token is minted per send, the
// open pixel is injected before </body>, and every http(s) link is rewritten
// through the signed click redirect.
package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/osteele/liquid"

	"github.com/ignite/crm-ingest/internal/domain"
	"github.com/ignite/crm-ingest/internal/service/activity"
	"github.com/ignite/crm-ingest/internal/service/person"
	"github.com/ignite/crm-ingest/internal/service/tracker"
)

// ErrPersonNotFound indicates the recipient does not exist in the caller's
// company.
var ErrPersonNotFound = errors.New("compose: person not found")

// RenderError indicates the caller's template failed to parse or render.
type RenderError struct {
	Part string // "subject" or "body_html"
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendering %s: %v", e.Part, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Request describes one outbound email to render. Subject and BodyHTML are
// Liquid templates; Data carries caller-supplied bindings merged on top of
// the recipient's own fields.
type Request struct {
	CompanyID string                 `json:"-"`
	PersonID  string                 `json:"person_id"`
	Subject   string                 `json:"subject"`
	BodyHTML  string                 `json:"body_html"`
	Data      map[string]interface{} `json:"data"`
}

// Email is a rendered, tracking-instrumented outbound message plus the
// timeline record it produced.
type Email struct {
	PersonID   string            `json:"person_id"`
	ActivityID string            `json:"activity_id"`
	Token      string            `json:"token"`
	Subject    string            `json:"subject"`
	HTML       string            `json:"html"`
	PixelURL   string            `json:"pixel_url"`
	ClickURLs  map[string]string `json:"click_urls,omitempty"`
}

// Service renders and instruments outbound emails.
type Service struct {
	engine     *liquid.Engine
	cache      sync.Map // template source -> *liquid.Template
	people     *person.Service
	activities *activity.Service
	tracker    *tracker.Service
}

// NewService creates a compose service with the standard filters registered.
func NewService(people *person.Service, activities *activity.Service, trk *tracker.Service) *Service {
	engine := liquid.NewEngine()

	// {{ display_name | default: "there" }}
	engine.RegisterFilter("default", func(value interface{}, fallback string) interface{} {
		if value == nil {
			return fallback
		}
		if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
			return fallback
		}
		return value
	})

	return &Service{
		engine:     engine,
		people:     people,
		activities: activities,
		tracker:    trk,
	}
}

// Compose renders one email for a person in the caller's company, records the
// email_sent activity, and rewrites the body for tracking. The activity is
// recorded before instrumentation so the token always points at an existing
// timeline entry.
func (s *Service) Compose(ctx context.Context, req Request) (*Email, error) {
	p, err := s.people.Get(ctx, req.PersonID)
	if err != nil {
		if errors.Is(err, person.ErrNotFound) {
			return nil, ErrPersonNotFound
		}
		return nil, err
	}
	if p.CompanyID != req.CompanyID {
		// Cross-company ids are indistinguishable from unknown ones.
		return nil, ErrPersonNotFound
	}

	bindings := map[string]interface{}{
		"email":        p.Email,
		"display_name": p.DisplayName,
		"person_id":    p.ID,
	}
	for k, v := range req.Data {
		bindings[k] = v
	}

	subject, err := s.render(req.Subject, bindings)
	if err != nil {
		return nil, &RenderError{Part: "subject", Err: err}
	}
	html, err := s.render(req.BodyHTML, bindings)
	if err != nil {
		return nil, &RenderError{Part: "body_html", Err: err}
	}

	act, err := s.activities.Record(ctx, &domain.Activity{
		ID:         uuid.New().String(),
		CompanyID:  p.CompanyID,
		PersonID:   p.ID,
		Type:       domain.ActivityEmailSent,
		Summary:    "Email sent: " + subject,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("recording send activity: %w", err)
	}

	bundle, err := s.tracker.IssueToken(ctx, p.CompanyID, act.ID, extractLinks(html))
	if err != nil {
		return nil, fmt.Errorf("minting tracking token: %w", err)
	}

	return &Email{
		PersonID:   p.ID,
		ActivityID: act.ID,
		Token:      bundle.Token,
		Subject:    subject,
		HTML:       instrument(html, bundle),
		PixelURL:   bundle.PixelURL,
		ClickURLs:  bundle.ClickURLs,
	}, nil
}

func (s *Service) render(source string, bindings map[string]interface{}) (string, error) {
	var tpl *liquid.Template
	if cached, ok := s.cache.Load(source); ok {
		tpl = cached.(*liquid.Template)
	} else {
		parsed, err := s.engine.ParseString(source)
		if err != nil {
			return "", err
		}
		s.cache.Store(source, parsed)
		tpl = parsed
	}
	return tpl.RenderString(bindings)
}

// extractLinks collects every http(s) href in document order, deduplicated.
func extractLinks(html string) []string {
	var links []string
	seen := make(map[string]bool)
	rest := html
	for {
		start := strings.Index(rest, `href="http`)
		if start == -1 {
			break
		}
		start += len(`href="`)
		end := strings.Index(rest[start:], `"`)
		if end == -1 {
			break
		}
		u := rest[start : start+end]
		if !seen[u] {
			seen[u] = true
			links = append(links, u)
		}
		rest = rest[start+end:]
	}
	return links
}

// instrument injects the open pixel and swaps hrefs for their signed click
// redirects. The pixel goes before </body> when present, otherwise at the end.
func instrument(html string, bundle *tracker.TokenBundle) string {
	for original, tracked := range bundle.ClickURLs {
		html = strings.ReplaceAll(html, `href="`+original+`"`, `href="`+tracked+`"`)
	}

	pixel := fmt.Sprintf(`<img src="%s" width="1" height="1" style="display:none" />`, bundle.PixelURL)
	if strings.Contains(html, "</body>") {
		return strings.Replace(html, "</body>", pixel+"</body>", 1)
	}
	return html + pixel
}
