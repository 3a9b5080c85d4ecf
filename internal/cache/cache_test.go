package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCache_GetSet(t *testing.T) {
	c := New[string, int](WithSweepInterval(0))
	defer c.Close()

	c.Set("head", 1000, time.Minute)

	got, ok := c.Get("head")
	if !ok || got != 1000 {
		t.Fatalf("Get = (%d, %v), want (1000, true)", got, ok)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestCache_ExpiryRemovesEntry(t *testing.T) {
	c := New[string, int](WithSweepInterval(0))
	defer c.Close()

	c.Set("k", 42, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected expired entry to be absent")
	}
	// Lazy eviction must remove the entry from storage, not just hide it.
	if c.Len() != 0 {
		t.Fatalf("expired entry still stored, len = %d", c.Len())
	}
}

func TestCache_SetReplaces(t *testing.T) {
	c := New[string, int](WithSweepInterval(0))
	defer c.Close()

	c.Set("k", 1, time.Minute)
	c.Set("k", 2, time.Minute)

	if got, _ := c.Get("k"); got != 2 {
		t.Fatalf("got %d, want replacement value 2", got)
	}
	if c.Len() != 1 {
		t.Fatalf("replacement grew the store to %d entries", c.Len())
	}
}

func TestCache_LRUEvictionAtCapacity(t *testing.T) {
	c := New[string, int](WithMaxEntries(2), WithSweepInterval(0))
	defer c.Close()

	c.Set("a", 1, time.Hour)
	c.Set("b", 2, time.Hour)

	// Touch "a" so "b" is the LRU victim.
	c.Get("a")
	c.Set("c", 3, time.Hour)

	if _, ok := c.Get("b"); ok {
		t.Error("expected LRU entry b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("recently used entry a was evicted")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("new entry c missing")
	}
}

func TestCache_SweepRemovesUnreadEntries(t *testing.T) {
	c := New[string, int](WithSweepInterval(0))
	defer c.Close()

	c.Set("stale", 1, time.Millisecond)
	c.Set("live", 2, time.Hour)
	time.Sleep(5 * time.Millisecond)

	c.sweep()

	if c.Len() != 1 {
		t.Fatalf("sweep left %d entries, want 1", c.Len())
	}
	if _, ok := c.Get("live"); !ok {
		t.Error("sweep removed a live entry")
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[string, int](WithMaxEntries(64), WithSweepInterval(0))
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", j%100)
				c.Set(key, n, time.Minute)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	if c.Len() > 64 {
		t.Fatalf("capacity exceeded: %d entries", c.Len())
	}
}
