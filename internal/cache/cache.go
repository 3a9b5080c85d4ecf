// Package cache provides an in-process expiring key/value store shared by the
// retrieval engine to avoid redundant upstream calls.
package cache

import (
	"container/list"
	"sync"
	"time"
)

const (
	// DefaultMaxEntries bounds the store when no capacity is configured.
	DefaultMaxEntries = 4096
	// DefaultSweepInterval is how often the background sweep removes expired
	// entries that are never read again.
	DefaultSweepInterval = 5 * time.Minute
)

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// Cache is a TTL + LRU bounded map. Reads and writes are safe under
// concurrent access; values are returned by value, never by handle into the
// store. Expired entries behave as absent and are removed on access; a
// background sweep bounds memory for keys that are never read again.
type Cache[K comparable, V any] struct {
	mu         sync.Mutex
	entries    map[K]*list.Element
	order      *list.List // front = most recently used
	maxEntries int

	stopSweep chan struct{}
	stopOnce  sync.Once

	// test hook, defaults to time.Now
	now func() time.Time
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	maxEntries    int
	sweepInterval time.Duration
}

// WithMaxEntries sets the LRU capacity.
func WithMaxEntries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxEntries = n
		}
	}
}

// WithSweepInterval sets the background sweep period. Zero disables the sweep.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) { o.sweepInterval = d }
}

// New creates a cache and starts its background sweep. Callers should Close
// the cache when done with it.
func New[K comparable, V any](opts ...Option) *Cache[K, V] {
	o := options{
		maxEntries:    DefaultMaxEntries,
		sweepInterval: DefaultSweepInterval,
	}
	for _, apply := range opts {
		apply(&o)
	}

	c := &Cache[K, V]{
		entries:    make(map[K]*list.Element),
		order:      list.New(),
		maxEntries: o.maxEntries,
		stopSweep:  make(chan struct{}),
		now:        time.Now,
	}

	if o.sweepInterval > 0 {
		go c.sweepLoop(o.sweepInterval)
	}

	return c
}

// Get returns the live value for key. An entry whose TTL has passed behaves
// as absent and is removed before returning.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}

	ent := elem.Value.(*entry[K, V])
	if !c.now().Before(ent.expiresAt) {
		c.removeLocked(elem)
		var zero V
		return zero, false
	}

	c.order.MoveToFront(elem)
	return ent.value, true
}

// Set stores value under key for ttl. An existing entry is fully replaced;
// at capacity the least-recently-used entry is evicted regardless of its
// remaining TTL.
func (c *Cache[K, V]) Set(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent := &entry[K, V]{key: key, value: value, expiresAt: c.now().Add(ttl)}

	if elem, ok := c.entries[key]; ok {
		elem.Value = ent
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.maxEntries {
		if oldest := c.order.Back(); oldest != nil {
			c.removeLocked(oldest)
		}
	}

	c.entries[key] = c.order.PushFront(ent)
}

// Delete removes key if present.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}
}

// Len returns the number of stored entries, including not-yet-swept expired
// ones.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Close stops the background sweep.
func (c *Cache[K, V]) Close() {
	c.stopOnce.Do(func() { close(c.stopSweep) })
}

func (c *Cache[K, V]) removeLocked(elem *list.Element) {
	ent := elem.Value.(*entry[K, V])
	c.order.Remove(elem)
	delete(c.entries, ent.key)
}

func (c *Cache[K, V]) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopSweep:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache[K, V]) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if ent := elem.Value.(*entry[K, V]); !now.Before(ent.expiresAt) {
			c.removeLocked(elem)
		}
		elem = prev
	}
}
