// Package batch implements the bounded-concurrency batch executor and the
// per-operator-family TTL caches (C6) that front the extraction and
// validation operators.
package batch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

type cacheEntry struct {
	value     any
	createdAt time.Time
	expiresAt time.Time
	hits      int
}

// Stats is the readable snapshot of one cache's hit/miss counters.
type Stats struct {
	Size    int     `json:"size"`
	Hits    int     `json:"hits"`
	Misses  int     `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Cache is a TTL-bounded, size-bounded cache for one operator family
// (fact, entity, citation, source_rating, conflict). It evicts the oldest
// 10% of entries (by CreatedAt) on overflow and is safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	ttl        time.Duration
	maxEntries int
	hits       int
	misses     int
}

// NewCache constructs a family cache with the given TTL and capacity.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		entries:    make(map[string]*cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// Key hashes an arbitrary JSON-serializable input into the cache key: the
// SHA-256 digest of the serialized input, truncated to 128 bits, hex.
func Key(input any) (string, error) {
	b, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:16]), nil
}

// Get returns the cached value for key, or ok=false on a miss (including
// an expired entry, which is evicted on access).
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		if ok {
			delete(c.entries, key)
		}
		c.misses++
		return nil, false
	}
	entry.hits++
	c.hits++
	return entry.value, true
}

// Set inserts or overwrites the entry for key. If the cache is at capacity,
// the oldest ceil(10% of max) entries (by CreatedAt) are evicted first.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}

	now := time.Now()
	c.entries[key] = &cacheEntry{value: value, createdAt: now, expiresAt: now.Add(c.ttl)}
}

func (c *Cache) evictOldestLocked() {
	n := (c.maxEntries + 9) / 10 // ceil(10% of max)
	if n < 1 {
		n = 1
	}
	if n > len(c.entries) {
		n = len(c.entries)
	}

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.entries[keys[i]].createdAt.Before(c.entries[keys[j]].createdAt)
	})
	for _, k := range keys[:n] {
		delete(c.entries, k)
	}
}

// SweepExpired removes every entry whose TTL has elapsed. Registry.StartSweep
// calls it every 60 seconds; config.Cache.SweepInterval is not consulted.
func (c *Cache) SweepExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Clear empties the cache and resets its hit/miss counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.hits = 0
	c.misses = 0
}

// Stats returns the current size/hit/miss/hit-rate snapshot.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return Stats{Size: len(c.entries), Hits: c.hits, Misses: c.misses, HitRate: hitRate}
}
