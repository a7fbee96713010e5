package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Store is a byte-oriented TTL cache.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// GetTyped reads key and unmarshals the JSON payload into T.
func GetTyped[T any](ctx context.Context, s Store, key string) (T, error) {
	var obj T
	raw, err := s.Get(ctx, key)
	if err != nil {
		return obj, err
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return obj, err
	}
	return obj, nil
}

// SetTyped marshals value to JSON and stores it under key.
func SetTyped[T any](ctx context.Context, s Store, key string, value T, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, raw, ttl)
}
