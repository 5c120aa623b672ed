// Package cache keeps recently resolved probe documents so repeated rule tests
// against the same document do not refetch it.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/virtualpaper/console/internal/domain"
)

// node represents a node in the doubly-linked list
type node struct {
	key       string
	value     *domain.Document
	expiresAt time.Time
	prev      *node
	next      *node
}

// LRUCache implements the DocumentCache interface using LRU eviction policy.
// Entries older than the TTL are treated as misses.
type LRUCache struct {
	maxSize int
	size    int
	ttl     time.Duration

	// Doubly-linked list for LRU ordering
	head *node
	tail *node

	cache map[string]*node
	mutex sync.Mutex

	hits      int64
	misses    int64
	evictions int64
	expired   int64

	now func() time.Time
}

// DefaultMaxSize is used when the configured size is not positive
const DefaultMaxSize = 500

// NewLRUCache creates a new LRU cache; a zero ttl keeps entries until evicted
func NewLRUCache(maxSize int, ttl time.Duration) *LRUCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	head := &node{}
	tail := &node{}
	head.next = tail
	tail.prev = head

	return &LRUCache{
		maxSize: maxSize,
		ttl:     ttl,
		head:    head,
		tail:    tail,
		cache:   make(map[string]*node),
		now:     time.Now,
	}
}

// Get returns a copy of the cached document and marks it as recently used
func (c *LRUCache) Get(key string) (*domain.Document, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	found, exists := c.cache[key]
	if !exists {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	if c.isExpired(found) {
		c.remove(found)
		atomic.AddInt64(&c.expired, 1)
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	c.moveToFront(found)
	atomic.AddInt64(&c.hits, 1)
	return found.value.Clone(), true
}

// Set adds or replaces a document
func (c *LRUCache) Set(key string, doc *domain.Document) {
	if doc == nil {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	expiresAt := time.Time{}
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}

	if existing, exists := c.cache[key]; exists {
		existing.value = doc.Clone()
		existing.expiresAt = expiresAt
		c.moveToFront(existing)
		return
	}

	newNode := &node{
		key:       key,
		value:     doc.Clone(),
		expiresAt: expiresAt,
	}
	c.addToFront(newNode)
	c.cache[key] = newNode
	c.size++

	if c.size > c.maxSize {
		c.evictLRU()
	}
}

// Invalidate removes a specific key from the cache
func (c *LRUCache) Invalidate(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if n, exists := c.cache[key]; exists {
		c.remove(n)
	}
}

// Clear removes all entries and resets the counters
func (c *LRUCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.head.next = c.tail
	c.tail.prev = c.head
	c.cache = make(map[string]*node)
	c.size = 0

	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
	atomic.StoreInt64(&c.evictions, 0)
	atomic.StoreInt64(&c.expired, 0)
}

// Stats returns current cache statistics
func (c *LRUCache) Stats() domain.CacheStats {
	c.mutex.Lock()
	size := c.size
	c.mutex.Unlock()

	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	total := hits + misses

	var hitRatio float64
	if total > 0 {
		hitRatio = float64(hits) / float64(total)
	}

	return domain.CacheStats{
		Hits:     hits,
		Misses:   misses,
		Size:     size,
		MaxSize:  c.maxSize,
		HitRatio: hitRatio,
	}
}

// HealthCheck performs a health check on the cache
func (c *LRUCache) HealthCheck(ctx context.Context) domain.HealthStatus {
	stats := c.Stats()

	status := domain.HealthStatusHealthy
	message := "Document cache is operating normally"
	details := map[string]any{
		"size":      stats.Size,
		"max_size":  stats.MaxSize,
		"hit_ratio": stats.HitRatio,
		"hits":      stats.Hits,
		"misses":    stats.Misses,
		"evictions": atomic.LoadInt64(&c.evictions),
		"expired":   atomic.LoadInt64(&c.expired),
		"ttl":       c.ttl.String(),
	}

	if stats.Size >= int(float64(stats.MaxSize)*0.9) {
		status = domain.HealthStatusDegraded
		message = "Document cache is near capacity"
		details["warning"] = "Cache utilization above 90%"
	}

	return domain.HealthStatus{
		Status:    status,
		Message:   message,
		Details:   details,
		Timestamp: c.now(),
	}
}

func (c *LRUCache) isExpired(n *node) bool {
	return !n.expiresAt.IsZero() && !c.now().Before(n.expiresAt)
}

func (c *LRUCache) remove(n *node) {
	c.removeNode(n)
	delete(c.cache, n.key)
	c.size--
}

// moveToFront moves a node to the front of the list (most recently used)
func (c *LRUCache) moveToFront(n *node) {
	c.removeNode(n)
	c.addToFront(n)
}

func (c *LRUCache) addToFront(n *node) {
	n.prev = c.head
	n.next = c.head.next
	c.head.next.prev = n
	c.head.next = n
}

func (c *LRUCache) removeNode(n *node) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

// evictLRU removes the least recently used item from the cache
func (c *LRUCache) evictLRU() {
	if c.tail.prev == c.head {
		return
	}
	c.remove(c.tail.prev)
	atomic.AddInt64(&c.evictions, 1)
}
