// Package ttlcache provides an in-memory cache whose entries expire after a
// per-entry time to live.
package ttlcache

import (
	"sync"
	"time"

	"github.com/snapordereat/otpgate/internal/pkg/clock"
)

// DefaultSweepInterval is how often the janitor removes expired entries.
const DefaultSweepInterval = time.Minute

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache stores values with a per-entry TTL.
//
// Expired entries are invisible to Get immediately; the janitor goroutine
// reclaims their memory on its sweep interval.
type Cache[K comparable, V any] struct {
	clock clock.Clocker

	mu      sync.RWMutex
	entries map[K]entry[V]

	stopOnce sync.Once
	stop     chan struct{}
}

// New constructs a Cache and starts its janitor goroutine.
//
// A sweepInterval of zero or below falls back to DefaultSweepInterval.
func New[K comparable, V any](clk clock.Clocker, sweepInterval time.Duration) *Cache[K, V] {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	c := &Cache[K, V]{
		clock:   clk,
		entries: make(map[K]entry[V]),
		stop:    make(chan struct{}),
	}

	go c.janitor(sweepInterval)

	return c
}

// Set stores value under key for the given TTL, replacing any previous entry.
// Values with a TTL of zero or below are not stored.
func (c *Cache[K, V]) Set(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{
		value:     value,
		expiresAt: c.clock.Now().Add(ttl),
	}
}

// Get returns the value stored under key and whether a live entry was found.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !c.clock.Now().Before(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Delete removes the entry stored under key, if any.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Len returns the number of stored entries, including not yet swept expired ones.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Close stops the janitor goroutine.
func (c *Cache[K, V]) Close() error {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	return nil
}

func (c *Cache[K, V]) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache[K, V]) sweep() {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}
