package reconcile

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/courtneys-list/vendors/internal/match"
)

// CandidateCache is a concurrent-safe LRU cache of candidate sets with TTL
// expiration. Keys combine the community with a mutation version, so a Bump
// makes every cached set unreachable.
type CandidateCache struct {
	mu         sync.RWMutex
	entries    map[string]*candidateEntry
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	version    atomic.Uint64
	hits       atomic.Int64
	misses     atomic.Int64
}

type candidateEntry struct {
	result    match.Result
	createdAt time.Time
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Version    uint64  `json:"version"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewCandidateCache creates a cache. A nil cache (ttl <= 0) is valid and
// never hits.
func NewCandidateCache(maxEntries int, ttl time.Duration) *CandidateCache {
	if ttl <= 0 {
		return nil
	}
	if maxEntries <= 0 {
		maxEntries = 64
	}
	return &CandidateCache{
		entries:    make(map[string]*candidateEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

func (c *CandidateCache) key(community string) string {
	return fmt.Sprintf("%s@%d", community, c.version.Load())
}

// Get returns the cached result for community at the current version.
func (c *CandidateCache) Get(community string) (match.Result, bool) {
	if c == nil {
		return match.Result{}, false
	}
	key := c.key(community)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return match.Result{}, false
	}

	if time.Since(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses.Add(1)
		return match.Result{}, false
	}

	c.removeFromOrder(key)
	c.order = append(c.order, key)
	c.hits.Add(1)
	return entry.result, true
}

// Put stores a result computed at version, evicting the oldest entry if at
// capacity. Results computed before a Bump are dropped.
func (c *CandidateCache) Put(community string, version uint64, res match.Result) {
	if c == nil || version != c.version.Load() {
		return
	}
	key := fmt.Sprintf("%s@%d", community, version)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = &candidateEntry{result: res, createdAt: time.Now()}
		c.removeFromOrder(key)
		c.order = append(c.order, key)
		return
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = &candidateEntry{result: res, createdAt: time.Now()}
	c.order = append(c.order, key)
}

// Version returns the current mutation version.
func (c *CandidateCache) Version() uint64 {
	if c == nil {
		return 0
	}
	return c.version.Load()
}

// Bump advances the mutation version and drops every entry.
func (c *CandidateCache) Bump() {
	if c == nil {
		return
	}
	c.version.Add(1)

	c.mu.Lock()
	c.entries = make(map[string]*candidateEntry)
	c.order = nil
	c.mu.Unlock()
}

// Stats returns cache performance statistics.
func (c *CandidateCache) Stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	c.mu.RLock()
	entries := len(c.entries)
	maxEntries := c.maxEntries
	c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Entries:    entries,
		MaxEntries: maxEntries,
		Version:    c.version.Load(),
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}

func (c *CandidateCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
