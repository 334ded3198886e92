package batch

import (
	"testing"
	"time"
)

func TestCacheSetGetHitsAndMisses(t *testing.T) {
	c := NewCache(time.Minute, 10)
	key, err := Key(map[string]string{"text": "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := c.Get(key); ok {
		t.Fatal("expected miss before insertion")
	}
	c.Set(key, "value")
	v, ok := c.Get(key)
	if !ok || v != "value" {
		t.Fatalf("expected hit with stored value, got %v ok=%v", v, ok)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Size != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	c := NewCache(time.Millisecond, 10)
	c.Set("k", "v")
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected entry to have expired")
	}
}

func TestCacheEvictsOldestTenPercentOnOverflow(t *testing.T) {
	c := NewCache(time.Minute, 10)
	for i := 0; i < 10; i++ {
		c.Set(string(rune('a'+i)), i)
		time.Sleep(time.Millisecond)
	}
	// Cache is now at capacity; one more insertion evicts ceil(10%)=1 oldest.
	c.Set("new", "value")

	if _, ok := c.Get(string(rune('a'))); ok {
		t.Fatal("expected oldest entry to be evicted")
	}
	if v, ok := c.Get("new"); !ok || v != "value" {
		t.Fatal("expected newly inserted entry to be present")
	}
}

func TestCacheSweepExpiredRemovesOnlyStale(t *testing.T) {
	c := NewCache(time.Millisecond, 10)
	c.Set("stale", "v")
	time.Sleep(5 * time.Millisecond)
	c.Set("fresh", "v")

	removed := c.SweepExpired()
	if removed != 1 {
		t.Fatalf("expected to sweep exactly the stale entry, removed=%d", removed)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Fatal("expected fresh entry to survive the sweep")
	}
}

func TestKeyIsDeterministic(t *testing.T) {
	a, err := Key(map[string]string{"text": "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Key(map[string]string{"text": "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatalf("expected identical input to hash to identical key: %q vs %q", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("expected 128-bit hex key (32 chars), got %d: %q", len(a), a)
	}
}
