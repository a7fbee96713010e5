package ratelimit

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket_TokensStayWithinCapacity(t *testing.T) {
	clock := newFakeClock()
	b := NewTokenBucket(3, 1, clock)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		switch rng.Intn(3) {
		case 0:
			b.Consume(rng.Intn(4) + 1)
		case 1:
			clock.Advance(time.Duration(rng.Intn(2500)) * time.Millisecond)
		default:
			b.TimeUntil(rng.Intn(3) + 1)
		}
		tokens := b.Tokens()
		require.GreaterOrEqual(t, tokens, 0.0, "step %d", i)
		require.LessOrEqual(t, tokens, 3.0, "step %d", i)
	}
}

func TestTokenBucket_FailedConsumeHasNoSideEffect(t *testing.T) {
	clock := newFakeClock()
	b := NewTokenBucket(2, 0.5, clock)

	require.True(t, b.Consume(1))
	before := b.Tokens()
	assert.False(t, b.Consume(2))
	assert.InDelta(t, before, b.Tokens(), 1e-9)
	assert.True(t, b.Consume(1))
	assert.False(t, b.Consume(1))
}

func TestTokenBucket_TimeUntil(t *testing.T) {
	clock := newFakeClock()
	b := NewTokenBucket(1, 5.0/60.0, clock)

	assert.Equal(t, time.Duration(0), b.TimeUntil(1))
	require.True(t, b.Consume(1))
	assert.InDelta(t, 12*time.Second, b.TimeUntil(1), float64(time.Millisecond))

	clock.Advance(6 * time.Second)
	assert.InDelta(t, 6*time.Second, b.TimeUntil(1), float64(time.Millisecond))

	clock.Advance(6*time.Second + time.Millisecond)
	assert.Equal(t, time.Duration(0), b.TimeUntil(1))
	assert.True(t, b.Consume(1))
}

func TestTokenBucket_RequestLargerThanCapacity(t *testing.T) {
	b := NewTokenBucket(2, 1, newFakeClock())
	assert.False(t, b.Consume(3))
	assert.Greater(t, b.TimeUntil(3), 24*time.Hour)
	assert.InDelta(t, 2.0, b.Tokens(), 1e-9)
}

func TestKeyedLimiter_Allow(t *testing.T) {
	clock := newFakeClock()
	l := NewKeyed(2, 1, clock)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "keys do not share buckets")

	clock.Advance(time.Second)
	assert.True(t, l.Allow("10.0.0.1"))
}
