package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(size int, ttl time.Duration) (*LRUCache[int], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](size, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRUCache_GetSet(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Fatal("Get() on empty cache should miss")
	}
	c.Set("a", 1)
	c.Set("a", 2)
	if v, ok := c.Get("a"); !ok || v != 2 {
		t.Fatalf("Get(a) = %v, %v; want 2, true", v, ok)
	}
	if c.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", c.Size())
	}
	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Fatalf("Stats() = %+v", st)
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", c.Stats().Evictions)
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c, clock := newTestCache(4, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	clock.advance(30 * time.Second)
	c.Set("c", 3)
	clock.advance(45 * time.Second)

	if _, ok := c.Get("a"); ok {
		t.Error("a should be expired")
	}
	if removed := c.CleanExpired(); removed != 1 {
		t.Errorf("CleanExpired() = %d, want 1 (b)", removed)
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Errorf("c should survive, got %v %v", v, ok)
	}
}

func TestLRUCache_Purge(t *testing.T) {
	c, _ := newTestCache(4, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if n := c.Purge(); n != 2 {
		t.Fatalf("Purge() = %d, want 2", n)
	}
	if c.Size() != 0 {
		t.Fatalf("Size() after purge = %d", c.Size())
	}
	c.Set("a", 5)
	if v, _ := c.Get("a"); v != 5 {
		t.Fatalf("cache unusable after purge, got %d", v)
	}
}

func TestManager_CleanNow(t *testing.T) {
	c, clock := newTestCache(4, time.Second)
	c.Set("a", 1)
	clock.advance(2 * time.Second)

	m := NewManager(nil)
	m.Register(c)
	if n := m.CleanNow(); n != 1 {
		t.Fatalf("CleanNow() = %d, want 1", n)
	}
	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := NewManager(nil)
	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() blocked without a running cleanup loop")
	}
}

var _ Cache[int] = (*LRUCache[int])(nil)
