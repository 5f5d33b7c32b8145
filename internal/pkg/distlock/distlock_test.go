package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisLock_AcquireIsExclusive(t *testing.T) {
	rdb := newTestClient(t)
	ctx := context.Background()

	a := NewRedisLock(rdb, "crm:person:c-1:lead@example.com", time.Minute)
	b := NewRedisLock(rdb, "crm:person:c-1:lead@example.com", time.Minute)

	ok, err := a.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire = %v, %v", ok, err)
	}
	ok, err = b.Acquire(ctx)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Error("second holder acquired a held lock")
	}

	if err := a.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = b.Acquire(ctx)
	if err != nil || !ok {
		t.Errorf("acquire after release = %v, %v", ok, err)
	}
}

func TestRedisLock_ReleaseOnlyOwnLock(t *testing.T) {
	rdb := newTestClient(t)
	ctx := context.Background()

	a := NewRedisLock(rdb, "k", time.Minute)
	b := NewRedisLock(rdb, "k", time.Minute)

	if ok, _ := a.Acquire(ctx); !ok {
		t.Fatal("acquire failed")
	}
	// b never acquired; releasing must not free a's lock.
	if err := b.Release(ctx); err != nil {
		t.Fatalf("foreign release errored: %v", err)
	}
	if ok, _ := b.Acquire(ctx); ok {
		t.Error("lock was freed by a non-owner release")
	}
}

func TestRedisLock_DifferentKeysDoNotContend(t *testing.T) {
	rdb := newTestClient(t)
	ctx := context.Background()

	a := NewRedisLock(rdb, "k1", time.Minute)
	b := NewRedisLock(rdb, "k2", time.Minute)

	if ok, _ := a.Acquire(ctx); !ok {
		t.Fatal("k1 acquire failed")
	}
	if ok, _ := b.Acquire(ctx); !ok {
		t.Error("k2 blocked by k1")
	}
}

func TestNewLock_PrefersRedis(t *testing.T) {
	rdb := newTestClient(t)

	if _, ok := NewLock(rdb, nil, "k", time.Minute).(*RedisLock); !ok {
		t.Error("redis client present but lock is not a RedisLock")
	}
	if _, ok := NewLock(nil, nil, "k", time.Minute).(*PGAdvisoryLock); !ok {
		t.Error("no redis client but lock is not a PGAdvisoryLock")
	}
}
