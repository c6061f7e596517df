// Package cache provides a thread-safe generic cache with an optional size bound.
package cache

import "sync"

type Cache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V

	// order holds keys in insertion order when the cache is bounded.
	order []K
	max   int
}

// NewCache returns an unbounded cache.
func NewCache[K comparable, V any]() *Cache[K, V] {
	return NewBoundedCache[K, V](0)
}

// NewBoundedCache returns a cache holding at most max entries, evicting the
// oldest insertion first. A non-positive max means unbounded.
func NewBoundedCache[K comparable, V any](max int) *Cache[K, V] {
	return &Cache[K, V]{
		items: make(map[K]V),
		max:   max,
	}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	val, ok := c.items[key]
	return val, ok
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, value)
}

func (c *Cache[K, V]) set(key K, value V) {
	if _, exists := c.items[key]; !exists && c.max > 0 {
		if len(c.order) >= c.max {
			delete(c.items, c.order[0])
			c.order = c.order[1:]
		}
		c.order = append(c.order, key)
	}
	c.items[key] = value
}

// GetOrSet returns the cached value for key, computing and storing it with fn
// on a miss. fn runs under the write lock, so concurrent misses on the same
// key compute once.
func (c *Cache[K, V]) GetOrSet(key K, fn func() V) (V, bool) {
	if val, ok := c.Get(key); ok {
		return val, true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if val, ok := c.items[key]; ok {
		return val, true
	}
	val := fn()
	c.set(key, val)
	return val, false
}

func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[key]; !ok {
		return
	}
	delete(c.items, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]V)
	c.order = nil
}
