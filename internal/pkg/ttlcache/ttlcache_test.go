package ttlcache

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T) (*Cache[string, int], *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)}
	cache := New[string, int](clk, time.Hour)
	t.Cleanup(func() { cache.Close() })
	return cache, clk
}

func TestSetAndGet(t *testing.T) {
	cache, _ := newTestCache(t)

	cache.Set("a", 1, time.Minute)

	got, ok := cache.Get("a")
	if !ok || got != 1 {
		t.Fatalf("expected (1, true), got (%d, %v)", got, ok)
	}
}

func TestGetMissingKey(t *testing.T) {
	cache, _ := newTestCache(t)

	if _, ok := cache.Get("missing"); ok {
		t.Fatal("expected a miss")
	}
}

func TestExpiredEntryIsInvisible(t *testing.T) {
	cache, clk := newTestCache(t)

	cache.Set("a", 1, time.Minute)
	clk.Advance(time.Minute)

	if _, ok := cache.Get("a"); ok {
		t.Fatal("expected an entry expiring exactly now to be invisible")
	}
}

func TestSetReplacesEntry(t *testing.T) {
	cache, _ := newTestCache(t)

	cache.Set("a", 1, time.Minute)
	cache.Set("a", 2, time.Minute)

	got, ok := cache.Get("a")
	if !ok || got != 2 {
		t.Fatalf("expected (2, true), got (%d, %v)", got, ok)
	}
}

func TestNonPositiveTTLIsNotStored(t *testing.T) {
	cache, _ := newTestCache(t)

	cache.Set("a", 1, 0)
	cache.Set("b", 2, -time.Second)

	if cache.Len() != 0 {
		t.Fatalf("expected empty cache, got %d entries", cache.Len())
	}
}

func TestDelete(t *testing.T) {
	cache, _ := newTestCache(t)

	cache.Set("a", 1, time.Minute)
	cache.Delete("a")

	if _, ok := cache.Get("a"); ok {
		t.Fatal("expected deleted entry to be gone")
	}
}

func TestSweepReclaimsExpiredEntries(t *testing.T) {
	cache, clk := newTestCache(t)

	cache.Set("a", 1, time.Minute)
	cache.Set("b", 2, time.Hour)
	clk.Advance(2 * time.Minute)

	cache.sweep()

	if cache.Len() != 1 {
		t.Fatalf("expected 1 entry after sweep, got %d", cache.Len())
	}
	if _, ok := cache.Get("b"); !ok {
		t.Error("live entry must survive the sweep")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	cache := New[string, int](clk, time.Hour)

	if err := cache.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
