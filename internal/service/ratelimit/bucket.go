package ratelimit

import (
	"math"
	"time"

	"golang.org/x/time/rate"
)

// Clock abstracts the time source so quota windows can be tested.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// TokenBucket is a refillable permit pool. The underlying rate.Limiter holds
// its own lock, so a bucket never contends with buckets of other providers.
type TokenBucket struct {
	lim        *rate.Limiter
	capacity   float64
	refillRate float64 // permits per second
	clock      Clock
}

// NewTokenBucket creates a full bucket.
func NewTokenBucket(capacity int, refillRate float64, clock Clock) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	if clock == nil {
		clock = SystemClock
	}
	return &TokenBucket{
		lim:        rate.NewLimiter(rate.Limit(refillRate), capacity),
		capacity:   float64(capacity),
		refillRate: refillRate,
		clock:      clock,
	}
}

// Consume takes n permits if available. On failure nothing changes.
func (b *TokenBucket) Consume(n int) bool {
	if n <= 0 {
		return true
	}
	return b.lim.AllowN(b.clock.Now(), n)
}

// TimeUntil returns how long until n permits are available.
func (b *TokenBucket) TimeUntil(n int) time.Duration {
	missing := float64(n) - b.Tokens()
	if missing <= 0 {
		return 0
	}
	if b.refillRate <= 0 || float64(n) > b.capacity {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(missing / b.refillRate * float64(time.Second))
}

// Tokens returns the current permit count after refill.
func (b *TokenBucket) Tokens() float64 {
	t := b.lim.TokensAt(b.clock.Now())
	switch {
	case t < 0:
		return 0
	case t > b.capacity:
		return b.capacity
	}
	return t
}

func (b *TokenBucket) Capacity() float64   { return b.capacity }
func (b *TokenBucket) RefillRate() float64 { return b.refillRate }
