package ratelimit

import "sync"

// KeyedLimiter hands out one lazily created bucket per key, e.g. per API
// client address. Only bucket creation takes the shared lock.
type KeyedLimiter struct {
	mu         sync.Mutex
	m          map[string]*TokenBucket
	capacity   int
	refillRate float64
	clock      Clock
}

// NewKeyed creates a keyed limiter whose buckets share capacity and refill rate.
func NewKeyed(capacity int, refillPerSec float64, clock Clock) *KeyedLimiter {
	if clock == nil {
		clock = SystemClock
	}
	return &KeyedLimiter{m: make(map[string]*TokenBucket), capacity: capacity, refillRate: refillPerSec, clock: clock}
}

// Allow returns true if one token can be consumed for key.
func (l *KeyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	b, ok := l.m[key]
	if !ok {
		b = NewTokenBucket(l.capacity, l.refillRate, l.clock)
		l.m[key] = b
	}
	l.mu.Unlock()
	return b.Consume(1)
}
