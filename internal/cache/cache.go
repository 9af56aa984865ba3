// Package cache provides a small in-memory key/value cache with TTL expiry
// and least-recently-used eviction. It backs the token, repository and issue
// caches; entries never survive a process restart.
package cache

import (
	"container/list"
	"errors"
	"sync"
	"time"
)

// sweepCeiling bounds the background expiry sweep period.
const sweepCeiling = 5 * time.Minute

type entry[T any] struct {
	key        string
	value      T
	insertedAt time.Time
}

// Cache is a bounded in-memory store. Reads and writes both count as "use"
// for eviction purposes: a Get on a live entry moves it to the back of the
// recency order, so the front of the order is always the least recently used
// entry. Entries expire ttl after they were last Set; a Get does not extend
// an entry's lifetime, only its recency.
//
// All methods are safe for concurrent use.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = least recently used
	ttl     time.Duration
	maxSize int

	done   chan struct{}
	closed bool

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a cache holding at most maxSize entries, each expiring ttl
// after insertion. Expired entries are also swept in the background on a
// period of min(ttl/2, 5 minutes). Close must be called to stop the sweeper.
func New[T any](ttl time.Duration, maxSize int) (*Cache[T], error) {
	if ttl <= 0 {
		return nil, errors.New("cache ttl must be positive")
	}
	if maxSize < 0 {
		return nil, errors.New("cache max size must not be negative")
	}

	c := &Cache[T]{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
		now:     time.Now,
	}

	go c.sweep(c.sweepInterval())

	return c, nil
}

func (c *Cache[T]) sweepInterval() time.Duration {
	interval := c.ttl / 2
	if interval > sweepCeiling {
		interval = sweepCeiling
	}
	return interval
}

// Set stores value under key, stamping it with the current time. An existing
// entry for key is replaced. When the cache is full, the least recently used
// entry is evicted to make room.
func (c *Cache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}

	// Evict before inserting so the bound holds even for maxSize 1.
	for len(c.entries) >= c.maxSize && c.order.Len() > 0 {
		c.removeElement(c.order.Front())
	}

	if c.maxSize == 0 {
		return
	}

	el := c.order.PushBack(&entry[T]{key: key, value: value, insertedAt: c.now()})
	c.entries[key] = el
}

// Get returns the live value for key. A hit promotes the entry to most
// recently used; an expired entry is removed and reported as a miss.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T

	el, ok := c.entries[key]
	if !ok {
		return zero, false
	}

	ent := el.Value.(*entry[T])
	if c.expired(ent) {
		c.removeElement(el)
		return zero, false
	}

	// Re-insert at the back: a read counts as a use, so eviction order
	// reflects both reads and writes. The insertion timestamp is kept, so
	// TTL still runs from the last Set.
	c.order.MoveToBack(el)

	return ent.value, true
}

// Has reports whether a live entry exists for key. Unlike Get, it does not
// change the entry's recency.
func (c *Cache[T]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return false
	}

	if c.expired(el.Value.(*entry[T])) {
		c.removeElement(el)
		return false
	}

	return true
}

// Delete removes the entry for key, if any.
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.removeElement(el)
	}
}

// Clear removes all entries.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Len returns the number of stored entries, including any that have expired
// but not yet been swept.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Close stops the background sweeper and drops all entries. It is safe to
// call more than once.
func (c *Cache[T]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.done)
	}

	c.entries = make(map[string]*list.Element)
	c.order.Init()

	return nil
}

func (c *Cache[T]) expired(e *entry[T]) bool {
	return c.now().Sub(e.insertedAt) > c.ttl
}

func (c *Cache[T]) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*entry[T]).key)
}

// sweep periodically removes expired entries. It only ever removes for
// expiry: size-based eviction happens inline in Set.
func (c *Cache[T]) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *Cache[T]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var next *list.Element
	for el := c.order.Front(); el != nil; el = next {
		next = el.Next()
		if c.expired(el.Value.(*entry[T])) {
			c.removeElement(el)
		}
	}
}
