package paramstore

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultTTL is how long a cached parameter value stays fresh.
const DefaultTTL = 5 * time.Minute

type cacheEntry struct {
	value     string
	fetchedAt time.Time
}

// CachedGetter wraps a Getter with a per-name TTL cache. Lambda containers
// are reused across invocations, so caching keeps SSM off the hot path for
// values that rarely change (API secrets, provider keys).
type CachedGetter struct {
	inner Getter
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCachedGetter creates a CachedGetter around inner. A non-positive ttl
// falls back to DefaultTTL.
func NewCachedGetter(inner Getter, ttl time.Duration) (*CachedGetter, error) {
	if inner == nil {
		return nil, errors.New("paramstore: inner getter must not be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedGetter{
		inner:   inner,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}, nil
}

// GetParameter returns the cached value for name when fresh, otherwise
// fetches through the inner getter. Errors are never cached.
func (c *CachedGetter) GetParameter(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	entry, ok := c.entries[name]
	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return entry.value, nil
	}
	c.mu.Unlock()

	value, err := c.inner.GetParameter(ctx, name)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[name] = cacheEntry{value: value, fetchedAt: c.now()}
	c.mu.Unlock()
	return value, nil
}

// Invalidate drops the cached value for name so the next read refetches,
// used after a parameter rotation.
func (c *CachedGetter) Invalidate(name string) {
	c.mu.Lock()
	delete(c.entries, name)
	c.mu.Unlock()
}
