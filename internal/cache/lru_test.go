package cache

import (
	"testing"
	"time"
)

func TestGetSetDelete(t *testing.T) {
	c := NewLRU[int](4, time.Minute)

	if _, ok := c.Get("2025-01"); ok {
		t.Fatal("empty cache should miss")
	}

	c.Set("2025-01", 42)
	if v, ok := c.Get("2025-01"); !ok || v != 42 {
		t.Fatalf("got %v %v", v, ok)
	}

	c.Delete("2025-01")
	if _, ok := c.Get("2025-01"); ok {
		t.Fatal("deleted key should miss")
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[string](2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a") // refresh a, b becomes eviction candidate
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should survive")
	}
	if c.Size() != 2 {
		t.Fatalf("size %d", c.Size())
	}
}

func TestTTLExpiry(t *testing.T) {
	c := NewLRU[int](4, 10*time.Millisecond)
	c.Set("k", 1)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry should miss")
	}

	c.Set("x", 1)
	c.Set("y", 2)
	time.Sleep(20 * time.Millisecond)
	if removed := c.CleanExpired(); removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if c.Size() != 0 {
		t.Fatalf("size %d after cleanup", c.Size())
	}
}

func TestPurge(t *testing.T) {
	c := NewLRU[int](4, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Purge()
	if c.Size() != 0 {
		t.Fatalf("size %d after purge", c.Size())
	}
}
