package events

import (
	"context"
	"sync"
	"time"

	"github.com/rodneygagnon/qckstrt/internal/cache"
)

// Deduper remembers event ids for a window. Claim reports false for an id
// already claimed; Release forgets an id so a redelivery can be processed.
type Deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type RedisDeduper struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewRedisDeduper(c *cache.Cache, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{cache: c, ttl: ttl}
}

func (d *RedisDeduper) Claim(ctx context.Context, eventID string) (bool, error) {
	return d.cache.SetNX(ctx, eventID, time.Now().Unix(), d.ttl)
}

func (d *RedisDeduper) Release(ctx context.Context, eventID string) error {
	return d.cache.Delete(ctx, eventID)
}

// MemoryDeduper is the single-process fallback when Redis is not configured.
type MemoryDeduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	return &MemoryDeduper{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

func (d *MemoryDeduper) Claim(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if exp, ok := d.seen[eventID]; ok && now.Before(exp) {
		return false, nil
	}
	d.seen[eventID] = now.Add(d.ttl)

	// Sweep lazily so the map stays bounded by the window.
	if len(d.seen)%1024 == 0 {
		for id, exp := range d.seen {
			if !now.Before(exp) {
				delete(d.seen, id)
			}
		}
	}
	return true, nil
}

func (d *MemoryDeduper) Release(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, eventID)
	return nil
}
