package cache

import (
	"context"
	"errors"
	"time"
)

// LayeredCache implements a two-level cache (L1: memory, L2: Redis).
// L2 failures degrade to L1-only behaviour.
type LayeredCache struct {
	memCache   *MemoryCache
	redisCache *RedisCache
	onL2Error  func(op string, err error)
}

// NewLayeredCache creates a layered cache. redisCache may be nil.
func NewLayeredCache(memCache *MemoryCache, redisCache *RedisCache, onL2Error func(op string, err error)) *LayeredCache {
	if onL2Error == nil {
		onL2Error = func(string, error) {}
	}
	return &LayeredCache{memCache: memCache, redisCache: redisCache, onL2Error: onL2Error}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_ = lc.memCache.Set(ctx, key, value, ttl)
	if lc.redisCache != nil {
		if err := lc.redisCache.Set(ctx, key, value, ttl); err != nil {
			lc.onL2Error("set", err)
		}
	}
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string) ([]byte, error) {
	if v, err := lc.memCache.Get(ctx, key); err == nil {
		return v, nil
	}
	if lc.redisCache == nil {
		return nil, ErrCacheMiss
	}

	v, ttl, err := lc.redisCache.GetWithTTL(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			lc.onL2Error("get", err)
		}
		return nil, ErrCacheMiss
	}
	// backfill L1 for whatever lifetime L2 has left
	if ttl > 0 {
		_ = lc.memCache.Set(ctx, key, v, ttl)
	}
	return v, nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.memCache.Delete(ctx, keys...)
	if lc.redisCache != nil {
		return lc.redisCache.Delete(ctx, keys...)
	}
	return nil
}

// Close closes both cache layers.
func (lc *LayeredCache) Close() error {
	_ = lc.memCache.Close()
	if lc.redisCache != nil {
		return lc.redisCache.Close()
	}
	return nil
}
