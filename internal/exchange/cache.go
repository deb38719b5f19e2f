package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// KeyFunc derives the cache key for a currency pair.
type KeyFunc func(from, to string) string

// PairKey is the default KeyFunc, formatting keys as "FROM-TO".
func PairKey(from, to string) string {
	return from + "-" + to
}

type cacheEntry struct {
	rate    decimal.Decimal
	expires time.Time
}

// Cache memoizes successful lookups per currency pair. Failures are never
// stored. With a zero TTL entries live until invalidated.
type Cache struct {
	op    RateFunc
	key   KeyFunc
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCache wraps op with a cache.
func NewCache(op RateFunc, key KeyFunc, ttl time.Duration) *Cache {
	if key == nil {
		key = PairKey
	}
	return &Cache{
		op:      op,
		key:     key,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Rate returns the cached rate for the pair or resolves it through the
// wrapped RateFunc. Concurrent misses for one key share a single lookup.
func (c *Cache) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	k := c.key(from, to)
	if rate, ok := c.get(k); ok {
		return rate, nil
	}

	// The shared lookup outlives any single caller; the client timeout and
	// retry budget bound it instead.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(k, func() (any, error) {
		if rate, ok := c.get(k); ok {
			return rate, nil
		}
		rate, err := c.op(shared, from, to)
		if err != nil {
			return nil, err
		}
		c.put(k, rate)
		return rate, nil
	})

	select {
	case <-ctx.Done():
		return decimal.Decimal{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return decimal.Decimal{}, res.Err
		}
		return res.Val.(decimal.Decimal), nil
	}
}

// Func exposes Rate as a RateFunc.
func (c *Cache) Func() RateFunc {
	return c.Rate
}

// Invalidate drops the entry for a single pair.
func (c *Cache) Invalidate(from, to string) {
	c.mu.Lock()
	delete(c.entries, c.key(from, to))
	c.mu.Unlock()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, e := range c.entries {
		if !c.expired(e, now) {
			n++
		}
	}
	return n
}

func (c *Cache) get(k string) (decimal.Decimal, bool) {
	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	if !ok || c.expired(e, c.now()) {
		return decimal.Decimal{}, false
	}
	return e.rate, true
}

func (c *Cache) put(k string, rate decimal.Decimal) {
	e := cacheEntry{rate: rate}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[k] = e
	c.mu.Unlock()
}

func (c *Cache) expired(e cacheEntry, now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}
