package tracker

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/crm-ingest/internal/domain"
	"github.com/ignite/crm-ingest/internal/pkg/logger"
)

// EventPublisher fans recorded engagement out to the aggregation worker.
// Publishing is fire-and-forget; recording never fails because of it.
type EventPublisher interface {
	PublishEngagement(ctx context.Context, evt domain.EngagementEvent)
}

// ClientMeta carries request attributes captured at the tracking endpoint.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// TokenBundle is the result of minting: the token plus the URLs the caller
// embeds into the outbound email.
type TokenBundle struct {
	Token     string            `json:"token"`
	PixelURL  string            `json:"pixel_url"`
	ClickURLs map[string]string `json:"click_urls"`
}

// Service mints tokens and records engagement.
type Service struct {
	repo       Repository
	pub        EventPublisher
	baseURL    string
	signingKey []byte
	tokenTTL   time.Duration
}

func NewService(repo Repository, pub EventPublisher, baseURL, signingKey string, tokenTTL time.Duration) *Service {
	return &Service{
		repo:       repo,
		pub:        pub,
		baseURL:    strings.TrimRight(baseURL, "/"),
		signingKey: []byte(signingKey),
		tokenTTL:   tokenTTL,
	}
}

// IssueToken mints an unguessable token bound to the activity that represents
// the outbound send, and returns the pixel URL plus a tracked URL for every
// link in the message body.
func (s *Service) IssueToken(ctx context.Context, companyID, activityID string, links []string) (*TokenBundle, error) {
	if strings.TrimSpace(activityID) == "" {
		return nil, ErrNoActivity
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("mint token: %w", err)
	}
	token := hex.EncodeToString(buf)

	tok := &domain.TrackingToken{
		Token:      token,
		CompanyID:  companyID,
		ActivityID: activityID,
		Links:      links,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.CreateToken(ctx, tok); err != nil {
		return nil, err
	}

	bundle := &TokenBundle{
		Token:     token,
		PixelURL:  s.PixelURL(token),
		ClickURLs: make(map[string]string, len(links)),
	}
	for _, link := range links {
		bundle.ClickURLs[link] = s.ClickURL(token, link)
	}
	return bundle, nil
}

// PixelURL builds the open-tracking pixel URL for a token.
func (s *Service) PixelURL(token string) string {
	return fmt.Sprintf("%s/t/o/%s.gif", s.baseURL, token)
}

// ClickURL builds a signed redirect URL for one original link.
func (s *Service) ClickURL(token, originalURL string) string {
	return fmt.Sprintf("%s/t/c/%s?u=%s&sig=%s",
		s.baseURL, token, url.QueryEscape(originalURL), s.sign(token, originalURL))
}

// RecordOpen appends an open event for the token. Every open is recorded,
// including repeats.
func (s *Service) RecordOpen(ctx context.Context, token string, meta ClientMeta) (*domain.EngagementEvent, error) {
	tok, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.record(ctx, tok, domain.EngagementOpen, "", meta)
}

// RecordClick verifies the signed destination, appends a click event, and
// returns the URL to redirect to.
func (s *Service) RecordClick(ctx context.Context, token, rawURL, sig string, meta ClientMeta) (*domain.EngagementEvent, string, error) {
	if !s.verify(token, rawURL, sig) {
		return nil, "", ErrBadSignature
	}
	tok, err := s.resolve(ctx, token)
	if err != nil {
		return nil, "", err
	}
	evt, err := s.record(ctx, tok, domain.EngagementClick, rawURL, meta)
	if err != nil {
		return nil, "", err
	}
	return evt, rawURL, nil
}

// Resolve loads the token's binding, applying the expiry window.
func (s *Service) Resolve(ctx context.Context, token string) (*domain.TrackingToken, error) {
	return s.resolve(ctx, token)
}

// Events returns the raw engagement history for a token.
func (s *Service) Events(ctx context.Context, token string) ([]*domain.EngagementEvent, error) {
	return s.repo.EventsForToken(ctx, token)
}

func (s *Service) resolve(ctx context.Context, token string) (*domain.TrackingToken, error) {
	if token == "" {
		return nil, ErrUnknownToken
	}
	tok, err := s.repo.FindToken(ctx, token)
	if err != nil {
		return nil, err
	}
	// Expired tokens behave exactly like unknown ones.
	if s.tokenTTL > 0 && time.Since(tok.CreatedAt) > s.tokenTTL {
		return nil, ErrUnknownToken
	}
	return tok, nil
}

func (s *Service) record(ctx context.Context, tok *domain.TrackingToken, kind domain.EngagementKind, linkURL string, meta ClientMeta) (*domain.EngagementEvent, error) {
	evt := &domain.EngagementEvent{
		ID:         uuid.New().String(),
		Token:      tok.Token,
		Kind:       kind,
		LinkURL:    linkURL,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		DeviceType: detectDevice(meta.UserAgent),
		OccurredAt: time.Now().UTC(),
	}
	if err := s.repo.InsertEvent(ctx, evt); err != nil {
		return nil, err
	}
	if s.pub != nil {
		s.pub.PublishEngagement(ctx, *evt)
	}
	logger.Debug("engagement recorded", "kind", string(kind), "token", tok.Token)
	return evt, nil
}

func (s *Service) sign(token, rawURL string) string {
	h := hmac.New(sha256.New, s.signingKey)
	h.Write([]byte(token + "|" + rawURL))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func (s *Service) verify(token, rawURL, sig string) bool {
	return hmac.Equal([]byte(s.sign(token, rawURL)), []byte(sig))
}

func detectDevice(ua string) string {
	ua = strings.ToLower(ua)
	if strings.Contains(ua, "mobile") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone") {
		return "mobile"
	}
	if strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad") {
		return "tablet"
	}
	return "desktop"
}
