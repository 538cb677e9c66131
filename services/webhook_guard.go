package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DeliveryGuard remembers processed webhook event ids so redeliveries are
// acknowledged without being applied again.
type DeliveryGuard interface {
	// CheckAndMark returns true when eventID was already marked.
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	// Release forgets eventID so a later redelivery is processed.
	Release(ctx context.Context, eventID string) error
}

// RedisGuard is a DeliveryGuard backed by SETNX with a TTL.
type RedisGuard struct {
	client redis.Cmdable
	ttl    time.Duration
	scope  string
}

func NewRedisGuard(client redis.Cmdable, ttl time.Duration, scope string) (*RedisGuard, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &RedisGuard{client: client, ttl: ttl, scope: scope}, nil
}

// NewRedisClient parses a redis:// URL and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (g *RedisGuard) key(eventID string) string {
	return fmt.Sprintf("idempotency:%s:%s", g.scope, eventID)
}

func (g *RedisGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	set, err := g.client.SetNX(ctx, g.key(eventID), "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

func (g *RedisGuard) Release(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.client.Del(ctx, g.key(eventID)).Err()
}

// MemoryGuard is an in-process DeliveryGuard for tests and single-instance
// runs. Marks expire after ttl, like RedisGuard keys.
type MemoryGuard struct {
	mu        sync.Mutex
	ttl       time.Duration
	seen      map[string]time.Time
	nextSweep time.Time
	now       func() time.Time
}

// NewMemoryGuard keeps marks for ttl. A non-positive ttl falls back to 24h.
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryGuard{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

func (g *MemoryGuard) CheckAndMark(_ context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.sweepLocked(now)
	if expiresAt, ok := g.seen[eventID]; ok && now.Before(expiresAt) {
		return true, nil
	}
	g.seen[eventID] = now.Add(g.ttl)
	return false, nil
}

func (g *MemoryGuard) Release(_ context.Context, eventID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, eventID)
	return nil
}

// Len reports how many marks are held, expired ones included until the next sweep.
func (g *MemoryGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

// sweepLocked drops expired marks, at most once per minute or per ttl.
func (g *MemoryGuard) sweepLocked(now time.Time) {
	if now.Before(g.nextSweep) {
		return
	}
	for id, expiresAt := range g.seen {
		if !now.Before(expiresAt) {
			delete(g.seen, id)
		}
	}
	g.nextSweep = now.Add(min(g.ttl, time.Minute))
}
