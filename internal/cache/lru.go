// Package cache provides the TTL LRU used to memoize month views. Entries
// are invalidated explicitly on edits, the TTL is a backstop.
package cache

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"
)

type entry[T any] struct {
	key       string
	value     T
	expiresAt time.Time
}

type LRU[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	index   map[string]*list.Element
	order   *list.List
}

func NewLRU[T any](maxSize int, ttl time.Duration) *LRU[T] {
	return &LRU[T]{
		maxSize: maxSize,
		ttl:     ttl,
		index:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

func (c *LRU[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, ok := c.index[key]
	if !ok {
		return zero, false
	}

	e := elem.Value.(*entry[T])
	if time.Now().After(e.expiresAt) {
		c.remove(elem)
		return zero, false
	}

	c.order.MoveToFront(elem)
	return e.value, true
}

func (c *LRU[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry[T]{key: key, value: value, expiresAt: time.Now().Add(c.ttl)}

	if elem, ok := c.index[key]; ok {
		elem.Value = e
		c.order.MoveToFront(elem)
		return
	}

	c.index[key] = c.order.PushFront(e)
	if c.order.Len() > c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.remove(oldest)
		}
	}
}

func (c *LRU[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.index[key]; ok {
		c.remove(elem)
	}
}

// Purge drops every entry. Used when an edit invalidates more than one
// month, e.g. a zone change.
func (c *LRU[T]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = make(map[string]*list.Element)
	c.order.Init()
}

func (c *LRU[T]) remove(elem *list.Element) {
	e := elem.Value.(*entry[T])
	delete(c.index, e.key)
	c.order.Remove(elem)
}

// CleanExpired drops entries past their TTL and reports how many went.
func (c *LRU[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var stale []*list.Element
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*entry[T]).expiresAt) {
			stale = append(stale, elem)
		}
	}
	for _, elem := range stale {
		c.remove(elem)
	}
	return len(stale)
}

func (c *LRU[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// StartCleanup sweeps expired entries on a ticker until ctx is done.
func (c *LRU[T]) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := c.CleanExpired(); removed > 0 {
					slog.Debug("Cache cleanup", "removed", removed, "remaining", c.Size())
				}
			}
		}
	}()
}
