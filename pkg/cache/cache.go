package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sid0791/Health-AI-V1-sub003/pkg/models"
)

// Cache is a TTL- and capacity-bounded in-memory memoization of prior
// results, keyed by normalized request fingerprint. Expired entries are
// dropped lazily on read and proactively by a periodic sweep.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	ttl        time.Duration
	maxEntries int
	hits       atomic.Int64
	misses     atomic.Int64
	evictions  atomic.Int64
}

type entry struct {
	payload   []byte
	createdAt time.Time
}

// New creates a Cache with the given TTL and maximum entry count.
func New(ttl time.Duration, maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &Cache{
		entries:    make(map[string]*entry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

var punctRe = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

// Normalize lower-cases a query, strips punctuation, and collapses
// whitespace so that superficially different but equivalent queries share
// one fingerprint.
func Normalize(query string) string {
	q := strings.ToLower(query)
	q = punctRe.ReplaceAllString(q, " ")
	return strings.Join(strings.Fields(q), " ")
}

// Fingerprint computes the cache key for a request.
func Fingerprint(category, templateID, query string) string {
	h := sha256.New()
	h.Write([]byte(category))
	h.Write([]byte{0})
	h.Write([]byte(templateID))
	h.Write([]byte{0})
	h.Write([]byte(Normalize(query)))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Get retrieves a cached payload. An entry older than the TTL is a miss
// and is removed.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if time.Since(e.createdAt) >= c.ttl {
		delete(c.entries, key)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e.payload, true
}

// Put stores a payload. When the cache is full the oldest ~10% of entries
// are evicted first.
func (c *Cache) Put(key string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked(c.maxEntries / 10)
	}
	c.entries[key] = &entry{payload: payload, createdAt: time.Now()}
}

// evictOldestLocked removes the n oldest entries by creation time.
// Caller holds the mutex.
func (c *Cache) evictOldestLocked(n int) {
	if n < 1 {
		n = 1
	}
	type aged struct {
		key string
		at  time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, aged{k, e.createdAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })
	if n > len(all) {
		n = len(all)
	}
	for _, a := range all[:n] {
		delete(c.entries, a.key)
	}
	c.evictions.Add(int64(n))
}

// Sweep removes all expired entries. Returns how many were dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := time.Now()
	for k, e := range c.entries {
		if now.Sub(e.createdAt) >= c.ttl {
			delete(c.entries, k)
			removed++
		}
	}
	c.evictions.Add(int64(removed))
	return removed
}

// Start runs the periodic sweep until the context is cancelled.
func (c *Cache) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

// Stats returns cache performance metrics.
func (c *Cache) Stats() models.CacheStats {
	c.mu.Lock()
	n := int64(len(c.entries))
	c.mu.Unlock()
	return models.CacheStats{
		Entries:   n,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// Clear removes entries. If expiredOnly is true, only expired entries are
// removed.
func (c *Cache) Clear(expiredOnly bool) {
	if expiredOnly {
		c.Sweep()
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
}
