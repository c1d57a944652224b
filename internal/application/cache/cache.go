// Package cache holds the coordinator's in-memory verdict cache. It lives
// only as long as the process; nothing here is persisted.
package cache

import (
	"sync"
	"time"

	"github.com/golang/groupcache/lru"

	"github.com/bryanwahyu/caniclickit/internal/application"
	"github.com/bryanwahyu/caniclickit/internal/domain/scans"
)

const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 512
)

type entry struct {
	result     *scans.ScanResult
	insertedAt time.Time
}

// VerdictCache maps a scanned URL to its result for a fixed TTL. Fallback
// results are cached like any other. Safe for concurrent use.
type VerdictCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	clock application.Clock
	lru   *lru.Cache
}

// New creates a cache. ttl <= 0 and maxEntries <= 0 select the defaults.
func New(ttl time.Duration, maxEntries int, clock application.Clock) *VerdictCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &VerdictCache{ttl: ttl, clock: clock, lru: lru.New(maxEntries)}
}

// Lookup returns the cached result for key. An entry older than the TTL is
// removed and reported absent.
func (c *VerdictCache) Lookup(key string) (*scans.ScanResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	e := v.(entry)
	if c.clock.Now().Sub(e.insertedAt) > c.ttl {
		c.lru.Remove(key)
		return nil, false
	}
	return e.result, true
}

// Store inserts or replaces the entry for key, stamping it with the
// current time.
func (c *VerdictCache) Store(key string, r *scans.ScanResult) {
	if r == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, entry{result: r, insertedAt: c.clock.Now()})
}

func (c *VerdictCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Purge drops every entry.
func (c *VerdictCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Clear()
}
