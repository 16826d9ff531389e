package cache

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type item[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is a map whose entries expire a fixed time after they were set.
// Expired entries are dropped on access and by Purge.
type TTLCache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]item[V]
	ttl   time.Duration
	clock clock.Clock
}

// NewTTLCache creates a cache whose entries live for ttl
func NewTTLCache[K comparable, V any](ttl time.Duration, clk clock.Clock) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		items: make(map[K]item[V]),
		ttl:   ttl,
		clock: clk,
	}
}

// Get returns the value for key if it has not expired
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}
	if !c.clock.Now().Before(it.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it
		if cur, ok := c.items[key]; ok && !c.clock.Now().Before(cur.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	return it.value, true
}

// Set stores value under key, replacing any existing entry
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = item[V]{value: value, expiresAt: c.clock.Now().Add(c.ttl)}
}

// Reserve stores value under key only if no live entry exists, and reports
// whether it did
func (c *TTLCache[K, V]) Reserve(key K, value V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if it, ok := c.items[key]; ok && now.Before(it.expiresAt) {
		return false
	}
	c.items[key] = item[V]{value: value, expiresAt: now.Add(c.ttl)}
	return true
}

// Delete removes key
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Purge drops every expired entry and returns how many were removed
func (c *TTLCache[K, V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	removed := 0
	for key, it := range c.items {
		if !now.Before(it.expiresAt) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired ones included
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
