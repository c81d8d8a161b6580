package pdf

import "sync"

// pageCache is a thread-safe least recently used cache.
type pageCache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[K]*cacheNode[K, V]
	head     *cacheNode[K, V] // most recently used
	tail     *cacheNode[K, V] // least recently used
	hits     int64
	misses   int64
}

type cacheNode[K comparable, V any] struct {
	key        K
	value      V
	prev, next *cacheNode[K, V]
}

func newPageCache[K comparable, V any](capacity int) *pageCache[K, V] {
	if capacity <= 0 {
		capacity = 8
	}
	c := &pageCache[K, V]{
		capacity: capacity,
		items:    make(map[K]*cacheNode[K, V]),
		head:     &cacheNode[K, V]{},
		tail:     &cacheNode[K, V]{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

func (c *pageCache[K, V]) get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.items[key]; ok {
		c.unlink(node)
		c.pushFront(node)
		c.hits++
		return node.value, true
	}
	c.misses++
	var zero V
	return zero, false
}

func (c *pageCache[K, V]) put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.items[key]; ok {
		node.value = value
		c.unlink(node)
		c.pushFront(node)
		return
	}
	node := &cacheNode[K, V]{key: key, value: value}
	c.pushFront(node)
	c.items[key] = node

	if len(c.items) > c.capacity {
		lru := c.tail.prev
		c.unlink(lru)
		delete(c.items, lru.key)
	}
}

func (c *pageCache[K, V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// CacheStats reports page cache effectiveness.
type CacheStats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Size     int   `json:"current_size"`
	Capacity int   `json:"max_capacity"`
}

// CacheReporter is implemented by documents that cache parsed pages.
type CacheReporter interface {
	CacheStats() CacheStats
}

func (c *pageCache[K, V]) stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Size: len(c.items), Capacity: c.capacity}
}

func (c *pageCache[K, V]) pushFront(node *cacheNode[K, V]) {
	node.prev = c.head
	node.next = c.head.next
	c.head.next.prev = node
	c.head.next = node
}

func (c *pageCache[K, V]) unlink(node *cacheNode[K, V]) {
	node.prev.next = node.next
	node.next.prev = node.prev
}
