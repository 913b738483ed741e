package containers

import (
	"container/list"

	"github.com/liarsdice/persistence/pkg/coreerr"
)

// lruEntry is the payload of each container/list element; Front is the
// most-recently-used entry, Back is the least-recently-used.
type lruEntry[K comparable, V any] struct {
	key   K
	value V
}

// LRUCache maps K to V with a fixed positive capacity, evicting the least
// recently used entry on overflow. Put is insertion-order-preserving for a
// fresh key and always promotes to most-recently-used; Get promotes on hit.
type LRUCache[K comparable, V any] struct {
	capacity int
	ll       *list.List
	items    map[K]*list.Element

	hits      uint64
	misses    uint64
	evictions uint64

	onEvict func(K, V)
}

// SetOnEvict installs a callback invoked with the key and value of every
// entry evicted for capacity, either from Put or Resize, and of every entry
// removed by Clear; Remove does not invoke it. Useful for callers
// that own a resource (a prepared statement, a file handle) needing
// cleanup on eviction.
func (c *LRUCache[K, V]) SetOnEvict(f func(K, V)) {
	c.onEvict = f
}

// NewLRUCache returns a cache with the given positive capacity.
func NewLRUCache[K comparable, V any](capacity int) (*LRUCache[K, V], error) {
	if capacity <= 0 {
		return nil, coreerr.New(coreerr.InvalidParameter, "lru cache capacity must be positive")
	}

	return &LRUCache[K, V]{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[K]*list.Element, capacity),
	}, nil
}

// Put inserts key/value, or refreshes an existing key's value and recency.
// If inserting a new key pushes the cache past capacity, the least recently
// used entry is evicted.
func (c *LRUCache[K, V]) Put(key K, value V) {
	if el, ok := c.items[key]; ok {
		el.Value.(*lruEntry[K, V]).value = value
		c.ll.MoveToFront(el)

		return
	}

	el := c.ll.PushFront(&lruEntry[K, V]{key: key, value: value})
	c.items[key] = el

	if c.ll.Len() > c.capacity {
		c.evictOldest()
	}
}

// Get returns key's value and promotes it to most-recently-used on hit.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	el, ok := c.items[key]
	if !ok {
		c.misses++

		var zero V

		return zero, false
	}

	c.hits++
	c.ll.MoveToFront(el)

	return el.Value.(*lruEntry[K, V]).value, true
}

// Peek returns key's value without affecting recency or hit/miss counters.
func (c *LRUCache[K, V]) Peek(key K) (V, bool) {
	el, ok := c.items[key]
	if !ok {
		var zero V

		return zero, false
	}

	return el.Value.(*lruEntry[K, V]).value, true
}

// Remove deletes key if present, reporting whether it was found.
func (c *LRUCache[K, V]) Remove(key K) bool {
	el, ok := c.items[key]
	if !ok {
		return false
	}

	c.ll.Remove(el)
	delete(c.items, key)

	return true
}

func (c *LRUCache[K, V]) evictOldest() {
	el := c.ll.Back()
	if el == nil {
		return
	}

	entry := el.Value.(*lruEntry[K, V])

	c.ll.Remove(el)
	delete(c.items, entry.key)
	c.evictions++

	if c.onEvict != nil {
		c.onEvict(entry.key, entry.value)
	}
}

// Resize truncates the cache from the LRU end down to n entries. n must be
// positive; resize(0) is rejected per the container's invariant that a
// cache always has room for at least one entry.
func (c *LRUCache[K, V]) Resize(n int) error {
	if n <= 0 {
		return coreerr.New(coreerr.InvalidParameter, "lru cache resize target must be positive")
	}

	c.capacity = n

	for c.ll.Len() > c.capacity {
		c.evictOldest()
	}

	return nil
}

// Len returns the current number of live entries.
func (c *LRUCache[K, V]) Len() int {
	return c.ll.Len()
}

// Stats returns the cumulative hit, miss, and eviction counts.
func (c *LRUCache[K, V]) Stats() (hits, misses, evictions uint64) {
	return c.hits, c.misses, c.evictions
}

// HitRate returns hits / (hits + misses), or 0 if no Get has been called.
func (c *LRUCache[K, V]) HitRate() float64 {
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}

	return float64(c.hits) / float64(total)
}

// Clear empties the cache without resetting its capacity or statistics,
// invoking any installed OnEvict callback for every removed entry.
func (c *LRUCache[K, V]) Clear() {
	for c.ll.Len() > 0 {
		c.evictOldest()
	}
}
