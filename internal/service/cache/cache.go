package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	drepo "FinFuse/internal/domain/repository"
	pkgcache "FinFuse/pkg/cache"
	"FinFuse/pkg/logger"
	"FinFuse/pkg/metrics"

	"golang.org/x/sync/singleflight"
)

// Entry is what is stored per (source, query). It is valid while
// now - StoredAt < TTL, regardless of what the backing store does.
type Entry struct {
	Payload  json.RawMessage `json:"payload"`
	StoredAt time.Time       `json:"stored_at"`
	TTL      time.Duration   `json:"ttl"`
}

// Valid reports whether the entry may still be served at now.
func (e Entry) Valid(now time.Time) bool {
	return now.Sub(e.StoredAt) < e.TTL
}

// Cache sits in front of collection sources. Concurrent misses on one key
// share a single load.
type Cache struct {
	name    string
	store   pkgcache.Store
	ttl     time.Duration
	now     func() time.Time
	group   singleflight.Group
	metrics drepo.Metrics
	l       *logger.Logger
}

// Option configures Cache.
type Option func(*Cache)

func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

func WithMetrics(m drepo.Metrics) Option { return func(c *Cache) { c.metrics = m } }

func WithLogger(l *logger.Logger) Option { return func(c *Cache) { c.l = l } }

// WithName sets the logger component, for caches other than the collect cache.
func WithName(name string) Option { return func(c *Cache) { c.name = name } }

// New creates a cache with a default entry ttl.
func New(store pkgcache.Store, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		name:    "collect_cache",
		store:   store,
		ttl:     ttl,
		now:     time.Now,
		metrics: metrics.Nop{},
		l:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.l = c.l.Component(c.name)
	return c
}

// Key builds the cache key for a source and subject batch. Subject order does
// not matter.
func Key(source string, subjects []string) string {
	sorted := make([]string, len(subjects))
	for i, s := range subjects {
		sorted[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	sort.Strings(sorted)
	return pkgcache.GenerateKey("collect:"+source, pkgcache.HashKey(strings.Join(sorted, ",")))
}

// Lookup returns the cached payload for key if a valid entry exists.
func (c *Cache) Lookup(ctx context.Context, key string) (json.RawMessage, bool) {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, pkgcache.ErrCacheMiss) {
			c.l.Warn("cache get failed", logger.String("key", key), logger.Error(err))
		}
		return nil, false
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.l.Warn("cache entry corrupt", logger.String("key", key), logger.Error(err))
		_ = c.store.Delete(ctx, key)
		return nil, false
	}
	if !e.Valid(c.now()) {
		return nil, false
	}
	return e.Payload, true
}

// Store writes payload under key with the cache ttl.
func (c *Cache) Store(ctx context.Context, key string, payload json.RawMessage) error {
	e := Entry{Payload: payload, StoredAt: c.now(), TTL: c.ttl}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	return c.store.Set(ctx, key, raw, c.ttl)
}

// GetOrLoad serves key from cache or runs load once for all concurrent callers
// and caches a successful result. hit is true only for a cache read.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, load func(ctx context.Context) (T, error)) (value T, hit bool, err error) {
	if raw, ok := c.Lookup(ctx, key); ok {
		if err := json.Unmarshal(raw, &value); err == nil {
			c.metrics.RecordCacheLookup(true)
			return value, true, nil
		}
	}
	c.metrics.RecordCacheLookup(false)

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// a flight that finished just before this one may have filled the key
		if raw, ok := c.Lookup(ctx, key); ok {
			return raw, nil
		}
		loaded, err := load(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(loaded)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		if err := c.Store(ctx, key, raw); err != nil {
			c.l.Warn("cache store failed", logger.String("key", key), logger.Error(err))
		}
		return json.RawMessage(raw), nil
	})
	if err != nil {
		return value, false, err
	}
	if err := json.Unmarshal(v.(json.RawMessage), &value); err != nil {
		return value, false, fmt.Errorf("decode payload: %w", err)
	}
	return value, false, nil
}
