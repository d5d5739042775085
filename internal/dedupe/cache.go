// ABOUTME: Bounded TTL cache for suppressing client message resends.
// ABOUTME: Keys combine the sender with the client-chosen message id.

package dedupe

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// entry tracks when a key was last seen and where it sits in eviction order.
type entry struct {
	seenAt  time.Time
	element *list.Element
}

// Cache remembers client message ids for a bounded window so that a
// reconnecting client resending the same frame does not produce a second
// message. Entries expire after the TTL and the oldest entry is evicted
// once the cache reaches capacity.
//
// Check and Mark are deliberately separate: callers check before
// processing and mark only after the send has committed, so a failed send
// stays retryable under the same client id.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	order    *list.List // keys in insertion order, oldest at the front
	ttl      time.Duration
	capacity int
	done     chan struct{}
	closed   bool
}

// New creates a cache holding at most capacity keys, each valid for ttl.
// A background goroutine sweeps expired entries until Close is called.
func New(ttl time.Duration, capacity int) *Cache {
	c := &Cache{
		entries:  make(map[string]*entry),
		order:    list.New(),
		ttl:      ttl,
		capacity: capacity,
		done:     make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Check reports whether the sender has already submitted this client
// message id within the TTL. An empty clientID is never deduplicated.
func (c *Cache) Check(senderID, clientID string) bool {
	if clientID == "" {
		return false
	}

	key := resendKey(senderID, clientID)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || time.Since(e.seenAt) >= c.ttl {
		return false
	}

	e.seenAt = time.Now()
	c.order.MoveToBack(e.element)
	return true
}

// Mark records a processed client message id. Call it only after the send
// has committed. Empty clientIDs are ignored.
func (c *Cache) Mark(senderID, clientID string) {
	if clientID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.recordLocked(resendKey(senderID, clientID))
}

// resendKey length-prefixes the sender component so ids containing the
// separator cannot make distinct sender/client pairs collide.
func resendKey(senderID, clientID string) string {
	return fmt.Sprintf("%d:%s|%s", len(senderID), senderID, clientID)
}

// recordLocked inserts or refreshes a key. Must be called with mu held.
func (c *Cache) recordLocked(key string) {
	now := time.Now()

	if e, ok := c.entries[key]; ok {
		e.seenAt = now
		c.order.MoveToBack(e.element)
		return
	}

	if len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}

	elem := c.order.PushBack(key)
	c.entries[key] = &entry{seenAt: now, element: elem}
}

// evictOldestLocked drops the entry at the front of the order list.
// Must be called with mu held.
func (c *Cache) evictOldestLocked() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, key)
}

// sweepLoop periodically removes expired entries.
func (c *Cache) sweepLoop() {
	interval := c.ttl
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

// sweep removes every expired entry.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.entries {
		if now.Sub(e.seenAt) >= c.ttl {
			c.order.Remove(e.element)
			delete(c.entries, key)
		}
	}
}

// Close stops the sweep goroutine. Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
