// ABOUTME: Thread-safe TTL cache for deduplicating chat events.
// ABOUTME: Guards the matrix frontend against sync redelivery of handled events.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// cacheEntry stores the timestamp and list element for a cached event ID.
type cacheEntry struct {
	timestamp time.Time
	element   *list.Element
}

// Cache is a thread-safe, TTL-based, size-limited record of handled chat
// event IDs. Matrix sync can redeliver events after reconnects; commands
// like check-in must not be re-run for an event that was already handled.
// A doubly-linked list keeps insertion order for O(1) eviction.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*cacheEntry
	order   *list.List // event IDs in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a dedupe cache with the given TTL and maximum size.
// A background goroutine periodically drops expired entries.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[string]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// CheckAndMark atomically checks whether an event ID was already handled and
// marks it if not. Returns true for a duplicate, false for a new event that
// is now marked. The single locked step avoids a check-then-mark race between
// concurrent deliveries of the same event.
func (c *Cache) CheckAndMark(eventID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.seen[eventID]
	if ok && time.Since(entry.timestamp) < c.ttl {
		return true
	}

	c.markLocked(eventID)
	return false
}

// markLocked records an event ID. Must be called with mu held.
func (c *Cache) markLocked(eventID string) {
	now := time.Now()

	// Refresh an existing entry instead of duplicating it
	if entry, exists := c.seen[eventID]; exists {
		entry.timestamp = now
		c.order.MoveToBack(entry.element)
		return
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(eventID)
	c.seen[eventID] = &cacheEntry{
		timestamp: now,
		element:   elem,
	}
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	eventID, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, eventID)
}

// cleanup periodically removes expired entries until Close.
func (c *Cache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for eventID, entry := range c.seen {
		if now.Sub(entry.timestamp) > c.ttl {
			c.order.Remove(entry.element)
			delete(c.seen, eventID)
		}
	}
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
