// Package cache provides a generic in-memory cache with optional per-entry TTL.
package cache

import (
	"context"
	"sync"
	"time"
)

type item[V any] struct {
	value     V
	expiresAt time.Time // zero = never
}

func (i item[V]) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// Cache is safe for concurrent use.
type Cache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]item[V]

	stop      chan struct{}
	closeOnce sync.Once
}

// New creates a cache. A positive cleanupInterval starts a janitor goroutine
// that evicts expired entries until Close is called.
func New[K comparable, V any](cleanupInterval time.Duration) *Cache[K, V] {
	c := &Cache[K, V]{
		items: make(map[K]item[V]),
		stop:  make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.janitor(cleanupInterval)
	}
	return c
}

// Get returns the value for k if present and not expired.
func (c *Cache[K, V]) Get(_ context.Context, k K) (V, bool) {
	c.mu.RLock()
	it, ok := c.items[k]
	c.mu.RUnlock()

	if !ok || it.expired(time.Now()) {
		var zero V
		return zero, false
	}
	return it.value, true
}

// Set stores v under k. ttl <= 0 keeps the entry until deleted.
func (c *Cache[K, V]) Set(_ context.Context, k K, v V, ttl time.Duration) {
	c.mu.Lock()
	c.items[k] = newItem(v, ttl)
	c.mu.Unlock()
}

// SetIfAbsent stores v only when k has no live entry. It returns the value
// held after the call and whether v was the one stored.
func (c *Cache[K, V]) SetIfAbsent(_ context.Context, k K, v V, ttl time.Duration) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if it, ok := c.items[k]; ok && !it.expired(time.Now()) {
		return it.value, false
	}
	c.items[k] = newItem(v, ttl)
	return v, true
}

// Delete removes k.
func (c *Cache[K, V]) Delete(_ context.Context, k K) {
	c.mu.Lock()
	delete(c.items, k)
	c.mu.Unlock()
}

// Len counts entries, including expired ones not yet evicted.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the janitor. The cache stays readable.
func (c *Cache[K, V]) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
}

func (c *Cache[K, V]) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache[K, V]) evictExpired() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, it := range c.items {
		if it.expired(now) {
			delete(c.items, k)
		}
	}
}

func newItem[V any](v V, ttl time.Duration) item[V] {
	it := item[V]{value: v}
	if ttl > 0 {
		it.expiresAt = time.Now().Add(ttl)
	}
	return it
}
