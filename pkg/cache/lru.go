package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/bastionai/bastion/pkg/detect"
)

// DefaultCapacity bounds the in-memory cache when no size is configured.
const DefaultCapacity = 1024

// LRU is the in-memory signal cache: bounded capacity, least-recently-used
// eviction, optional TTL. Single-node deployments use this; the Redis
// backend is a drop-in for shared setups.
type LRU struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration // 0 = entries live for the process lifetime
	order    *list.List    // front = most recently used
	entries  map[uint64]*list.Element

	now func() time.Time // test hook
}

type lruEntry struct {
	key      uint64
	signals  []detect.Signal
	storedAt time.Time
}

// NewLRU creates a cache with the given capacity and TTL. Non-positive
// capacity falls back to DefaultCapacity; zero TTL disables expiry.
func NewLRU(capacity int, ttl time.Duration) *LRU {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &LRU{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		entries:  make(map[uint64]*list.Element, capacity),
		now:      time.Now,
	}
}

// Get implements SignalCache.
func (c *LRU) Get(_ context.Context, key uint64) ([]detect.Signal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	entry := elem.Value.(*lruEntry)
	if c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		c.order.Remove(elem)
		delete(c.entries, key)
		return nil, false
	}

	c.order.MoveToFront(elem)
	return clone(entry.signals), true
}

// Put implements SignalCache.
func (c *LRU) Put(_ context.Context, key uint64, signals []detect.Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*lruEntry)
		entry.signals = clone(signals)
		entry.storedAt = c.now()
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&lruEntry{
		key:      key,
		signals:  clone(signals),
		storedAt: c.now(),
	})
	c.entries[key] = elem

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*lruEntry).key)
	}
}

// Len returns the number of live entries.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
