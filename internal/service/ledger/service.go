package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/crm-ingest/internal/domain"
)

// cacheTTL bounds how long a committed result is served from Redis before
// falling back to Postgres. Webhook senders retry within minutes, so a short
// TTL covers almost all duplicate deliveries without growing the keyspace.
const cacheTTL = 24 * time.Hour

// Service implements ledger business logic. It is safe for concurrent use.
type Service struct {
	repo  Repository
	cache *redis.Client // optional fast path; nil disables caching
}

// NewService creates a ledger service backed by the given repository.
// cache may be nil.
func NewService(repo Repository, cache *redis.Client) *Service {
	return &Service{repo: repo, cache: cache}
}

func cacheKey(channel domain.Channel, key string) string {
	return fmt.Sprintf("crm:idem:%s:%s", channel, key)
}

// Lookup returns the stored result for an event key, or ErrNotFound when the
// key has never been committed.
func (s *Service) Lookup(ctx context.Context, channel domain.Channel, key string) (*domain.IdempotencyRecord, error) {
	if key == "" {
		return nil, fmt.Errorf("event key is required")
	}

	if s.cache != nil {
		if result, err := s.cache.Get(ctx, cacheKey(channel, key)).Result(); err == nil {
			return &domain.IdempotencyRecord{Channel: channel, EventKey: key, Result: result}, nil
		}
		// Cache miss or Redis unavailable: Postgres is authoritative either way.
	}

	rec, err := s.repo.Find(ctx, channel, key)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, cacheKey(channel, key), rec.Result, cacheTTL)
	}
	return rec, nil
}

// Commit stores the processing result under the event key. The write is
// insert-if-absent: when another writer already committed this key, Commit
// returns that winner's record and won=false, and the caller must discard
// its own result in favor of the stored one.
func (s *Service) Commit(ctx context.Context, channel domain.Channel, key, result string) (*domain.IdempotencyRecord, bool, error) {
	if key == "" {
		return nil, false, fmt.Errorf("event key is required")
	}

	rec := &domain.IdempotencyRecord{
		Channel:   channel,
		EventKey:  key,
		Result:    result,
		CreatedAt: time.Now().UTC(),
	}

	won, err := s.repo.Insert(ctx, rec)
	if err != nil {
		return nil, false, fmt.Errorf("commit idempotency key: %w", err)
	}
	if !won {
		winner, err := s.repo.Find(ctx, channel, key)
		if err != nil {
			return nil, false, fmt.Errorf("re-read idempotency winner: %w", err)
		}
		rec = winner
	}

	if s.cache != nil {
		s.cache.Set(ctx, cacheKey(channel, key), rec.Result, cacheTTL)
	}
	return rec, won, nil
}
