package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	key      string
	value    []byte
	expireAt time.Time
}

// MemoryCache is an LRU-bounded in-process Store. Expired entries are
// dropped on access and evicted first when the cache is full.
type MemoryCache struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List // front = most recently used
	maxSize int
	now     func() time.Time
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize: 1000,
		Now:     time.Now,
	}

	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.MaxSize < 1 {
		cfg.MaxSize = 1
	}

	return &MemoryCache{
		items:   make(map[string]*list.Element),
		order:   list.New(),
		maxSize: cfg.MaxSize,
		now:     cfg.Now,
	}
}

func (mc *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	el, ok := mc.items[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	item := el.Value.(*memoryItem)
	if !mc.now().Before(item.expireAt) {
		mc.removeElement(el)
		return nil, ErrCacheMiss
	}
	mc.order.MoveToFront(el)
	return item.value, nil
}

// Set stores value until ttl elapses. A non-positive ttl is not cached.
func (mc *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()

	expireAt := mc.now().Add(ttl)
	if el, ok := mc.items[key]; ok {
		item := el.Value.(*memoryItem)
		item.value, item.expireAt = value, expireAt
		mc.order.MoveToFront(el)
		return nil
	}

	for len(mc.items) >= mc.maxSize {
		mc.evict()
	}
	mc.items[key] = mc.order.PushFront(&memoryItem{key: key, value: value, expireAt: expireAt})
	return nil
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for _, key := range keys {
		if el, ok := mc.items[key]; ok {
			mc.removeElement(el)
		}
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.items)
}

func (mc *MemoryCache) Close() error { return nil }

// evict drops one expired entry if any, otherwise the least recently used.
func (mc *MemoryCache) evict() {
	now := mc.now()
	for el := mc.order.Back(); el != nil; el = el.Prev() {
		if !now.Before(el.Value.(*memoryItem).expireAt) {
			mc.removeElement(el)
			return
		}
	}
	if el := mc.order.Back(); el != nil {
		mc.removeElement(el)
	}
}

func (mc *MemoryCache) removeElement(el *list.Element) {
	mc.order.Remove(el)
	delete(mc.items, el.Value.(*memoryItem).key)
}
