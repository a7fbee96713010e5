package ratelimit

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"FinFuse/internal/domain/models"
	drepo "FinFuse/internal/domain/repository"
	"FinFuse/pkg/logger"
	"FinFuse/pkg/metrics"
)

const (
	dayWindow   = 24 * time.Hour
	monthWindow = 30 * 24 * time.Hour
	// minWait keeps AcquireWithWait from spinning when the bucket reports a
	// zero wait but a concurrent caller won the permit.
	minWait = 5 * time.Millisecond
)

var ErrUnknownProvider = errors.New("ratelimit: unknown provider")

// providerState is everything the manager tracks for one provider. All of it
// is guarded by mu, which is scoped to this provider only.
type providerState struct {
	mu           sync.Mutex
	cfg          models.ProviderConfig
	bucket       *TokenBucket
	history      []time.Time // call timestamps, oldest first
	blockedUntil time.Time
}

// Manager owns one token bucket and call history per provider and enforces
// per-minute, per-day and per-month ceilings plus cooldowns.
type Manager struct {
	providers map[string]*providerState // immutable after NewManager
	order     []string

	clock   Clock
	sleep   func(ctx context.Context, d time.Duration) error
	metrics drepo.Metrics
	l       *logger.Logger

	dailyCooldown     time.Duration
	monthlyCooldown   time.Duration
	noDailyLimitBonus float64
}

// Option configures Manager.
type Option func(*Manager)

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithSleep replaces the sleep used by AcquireWithWait.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Manager) { m.sleep = fn }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r drepo.Metrics) Option {
	return func(m *Manager) { m.metrics = r }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.l = l }
}

// WithCooldowns sets the cooldowns applied after a daily or monthly breach.
func WithCooldowns(daily, monthly time.Duration) Option {
	return func(m *Manager) {
		if daily > 0 {
			m.dailyCooldown = daily
		}
		if monthly > 0 {
			m.monthlyCooldown = monthly
		}
	}
}

// WithNoDailyLimitBonus sets the SelectBestProvider bonus for providers without a daily ceiling.
func WithNoDailyLimitBonus(b float64) Option {
	return func(m *Manager) { m.noDailyLimitBonus = b }
}

// NewManager builds the per-provider state. The bucket holds
// max(burst, callsPerMinute) permits and refills at callsPerMinute/60 per second.
func NewManager(providers []models.ProviderConfig, opts ...Option) *Manager {
	m := &Manager{
		providers:         make(map[string]*providerState, len(providers)),
		clock:             SystemClock,
		sleep:             sleepCtx,
		metrics:           metrics.Nop{},
		l:                 logger.Nop(),
		dailyCooldown:     time.Hour,
		monthlyCooldown:   24 * time.Hour,
		noDailyLimitBonus: 10,
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, p := range providers {
		if _, dup := m.providers[p.Name]; dup {
			continue
		}
		capacity := p.Burst
		if p.CallsPerMinute > capacity {
			capacity = p.CallsPerMinute
		}
		m.providers[p.Name] = &providerState{
			cfg:    p,
			bucket: NewTokenBucket(capacity, float64(p.CallsPerMinute)/60.0, m.clock),
		}
		m.order = append(m.order, p.Name)
	}
	return m
}

// Acquire takes n permits from provider or reports false. It never blocks.
func (m *Manager) Acquire(provider string, n int) bool {
	st, ok := m.providers[provider]
	if !ok {
		return false
	}
	now := m.clock.Now()

	st.mu.Lock()
	defer st.mu.Unlock()

	if now.Before(st.blockedUntil) {
		m.metrics.RecordRateLimited(provider)
		return false
	}

	st.purge(now)
	if c := st.cfg.CallsPerMonth; c > 0 && len(st.history) >= c {
		st.block(now.Add(m.monthlyCooldown))
		m.metrics.RecordCooldown(provider, "monthly")
		m.l.Warn("provider monthly quota reached",
			logger.String("provider", provider),
			logger.Int("ceiling", c),
			logger.Duration("cooldown_ms", m.monthlyCooldown))
		return false
	}
	if c := st.cfg.CallsPerDay; c > 0 && st.countSince(now.Add(-dayWindow)) >= c {
		st.block(now.Add(m.dailyCooldown))
		m.metrics.RecordCooldown(provider, "daily")
		m.l.Warn("provider daily quota reached",
			logger.String("provider", provider),
			logger.Int("ceiling", c),
			logger.Duration("cooldown_ms", m.dailyCooldown))
		return false
	}

	if !st.bucket.Consume(n) {
		m.metrics.RecordRateLimited(provider)
		return false
	}
	for i := 0; i < n; i++ {
		st.history = append(st.history, now)
	}
	return true
}

// AcquireWithWait retries Acquire, sleeping for the bucket's TimeUntil (or the
// remaining cooldown) between attempts. It never waits past maxWait.
func (m *Manager) AcquireWithWait(ctx context.Context, provider string, n int, maxWait time.Duration) bool {
	st, ok := m.providers[provider]
	if !ok {
		return false
	}
	deadline := m.clock.Now().Add(maxWait)
	for {
		if m.Acquire(provider, n) {
			return true
		}
		now := m.clock.Now()
		remaining := deadline.Sub(now)
		if remaining <= 0 {
			return false
		}

		st.mu.Lock()
		wait := st.bucket.TimeUntil(n)
		if now.Before(st.blockedUntil) {
			wait = st.blockedUntil.Sub(now)
		}
		st.mu.Unlock()

		if wait < minWait {
			wait = minWait
		}
		if wait > remaining {
			wait = remaining
		}
		if err := m.sleep(ctx, wait); err != nil {
			return false
		}
	}
}

// SelectBestProvider picks the candidate with the most headroom, scored as
// (available/requiredCalls) * (callsPerMinute/60) plus a bonus when the
// provider has no daily ceiling. Ties keep candidate order.
func (m *Manager) SelectBestProvider(requiredCalls int, candidates []string) (string, bool) {
	if requiredCalls < 1 {
		requiredCalls = 1
	}
	now := m.clock.Now()
	best, bestScore, found := "", 0.0, false
	for _, name := range candidates {
		st, ok := m.providers[name]
		if !ok {
			continue
		}
		st.mu.Lock()
		blocked := now.Before(st.blockedUntil)
		available := st.bucket.Tokens()
		cfg := st.cfg
		st.mu.Unlock()
		if blocked {
			continue
		}
		score := (available / float64(requiredCalls)) * (float64(cfg.CallsPerMinute) / 60.0)
		if cfg.CallsPerDay == 0 {
			score += m.noDailyLimitBonus
		}
		if !found || score > bestScore {
			best, bestScore, found = name, score, true
		}
	}
	return best, found
}

// Block puts provider into cooldown for d, e.g. after it answered HTTP 429.
// An existing longer cooldown is kept.
func (m *Manager) Block(provider string, d time.Duration) error {
	st, ok := m.providers[provider]
	if !ok {
		return ErrUnknownProvider
	}
	until := m.clock.Now().Add(d)
	st.mu.Lock()
	st.block(until)
	st.mu.Unlock()
	m.metrics.RecordCooldown(provider, "provider_reported")
	return nil
}

// Blocked reports whether provider is cooling down.
func (m *Manager) Blocked(provider string) bool {
	st, ok := m.providers[provider]
	if !ok {
		return false
	}
	now := m.clock.Now()
	st.mu.Lock()
	defer st.mu.Unlock()
	return now.Before(st.blockedUntil)
}

// Status returns a usage snapshot for every provider in configuration order.
func (m *Manager) Status() []models.ProviderUsage {
	now := m.clock.Now()
	out := make([]models.ProviderUsage, 0, len(m.order))
	for _, name := range m.order {
		st := m.providers[name]
		st.mu.Lock()
		st.purge(now)
		u := models.ProviderUsage{
			Provider:        name,
			AvailableTokens: st.bucket.Tokens(),
			Capacity:        st.bucket.Capacity(),
			CallsPerMinute:  st.cfg.CallsPerMinute,
			CallsPerDay:     st.cfg.CallsPerDay,
			CallsPerMonth:   st.cfg.CallsPerMonth,
			CallsLastMinute: st.countSince(now.Add(-time.Minute)),
			CallsLastDay:    st.countSince(now.Add(-dayWindow)),
			CallsLastMonth:  len(st.history),
			Blocked:         now.Before(st.blockedUntil),
		}
		if u.Blocked {
			until := st.blockedUntil
			u.BlockedUntil = &until
		}
		st.mu.Unlock()
		out = append(out, u)
	}
	return out
}

// Providers returns the configured provider names in order.
func (m *Manager) Providers() []string { return append([]string(nil), m.order...) }

// purge drops history outside the month window. Caller holds mu.
func (st *providerState) purge(now time.Time) {
	cut := now.Add(-monthWindow)
	i := sort.Search(len(st.history), func(i int) bool { return st.history[i].After(cut) })
	if i > 0 {
		st.history = append(st.history[:0], st.history[i:]...)
	}
}

// countSince counts calls strictly after t. Caller holds mu.
func (st *providerState) countSince(t time.Time) int {
	i := sort.Search(len(st.history), func(i int) bool { return st.history[i].After(t) })
	return len(st.history) - i
}

func (st *providerState) block(until time.Time) {
	if until.After(st.blockedUntil) {
		st.blockedUntil = until
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
