package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"FinFuse/internal/domain/models"
	drepo "FinFuse/internal/domain/repository"
	"FinFuse/internal/service/ratelimit"
	"FinFuse/pkg/logger"
	"FinFuse/pkg/metrics"
)

var (
	// ErrRateLimited is wrapped by adapters when the provider itself reports a rate limit.
	ErrRateLimited = errors.New("provider: rate limited by upstream")
	// ErrNoData is wrapped by adapters when the provider answered but had nothing for the subject.
	ErrNoData = errors.New("provider: no data for subject")
	// ErrNoProviders is returned when a cascade is built with nothing to call.
	ErrNoProviders = errors.New("provider: no usable providers")
)

// Outcome classifies one provider attempt.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeThrottled   Outcome = "throttled"    // local rate limiter refused a permit
	OutcomeUpstream429 Outcome = "rate_limited" // provider reported its own limit
	OutcomeTimeout     Outcome = "timeout"
	OutcomeNoData      Outcome = "no_data"
	OutcomeError       Outcome = "error"
)

// Attempt records what happened when one provider was tried.
type Attempt struct {
	Provider string        `json:"provider"`
	Outcome  Outcome       `json:"outcome"`
	Error    string        `json:"error,omitempty"`
	Latency  time.Duration `json:"latency"`
}

// Result is the outcome of a cascading fetch. Unavailable is set when every
// provider was exhausted; Value is then the zero value.
type Result[T any] struct {
	Value       T
	Source      string
	Unavailable bool
	Attempts    []Attempt
}

// Step is one provider in a cascade.
type Step[T any] struct {
	Provider string
	Priority int
	Call     func(ctx context.Context, subject string) (T, error)
}

// Cascade tries providers for one capability in priority order and returns the
// first normalized success.
type Cascade[T any] struct {
	capability models.Capability
	steps      []Step[T]
	limiter    *ratelimit.Manager

	callTimeout      time.Duration
	upstreamCooldown time.Duration
	metrics          drepo.Metrics
	l                *logger.Logger
}

// CascadeOption configures a Cascade.
type CascadeOption func(*cascadeOptions)

type cascadeOptions struct {
	callTimeout      time.Duration
	upstreamCooldown time.Duration
	metrics          drepo.Metrics
	l                *logger.Logger
}

// WithCallTimeout bounds each provider call.
func WithCallTimeout(d time.Duration) CascadeOption {
	return func(o *cascadeOptions) { o.callTimeout = d }
}

// WithUpstreamCooldown sets how long a provider that reported a rate limit is skipped.
func WithUpstreamCooldown(d time.Duration) CascadeOption {
	return func(o *cascadeOptions) { o.upstreamCooldown = d }
}

// WithCascadeMetrics sets the metrics recorder.
func WithCascadeMetrics(m drepo.Metrics) CascadeOption {
	return func(o *cascadeOptions) { o.metrics = m }
}

// WithCascadeLogger sets the logger.
func WithCascadeLogger(l *logger.Logger) CascadeOption {
	return func(o *cascadeOptions) { o.l = l }
}

// NewCascade orders steps by descending priority (stable on input order).
// It fails when steps is empty so a misconfigured capability is caught at startup.
func NewCascade[T any](capability models.Capability, limiter *ratelimit.Manager, steps []Step[T], opts ...CascadeOption) (*Cascade[T], error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("%s cascade: %w", capability, ErrNoProviders)
	}
	if limiter == nil {
		return nil, fmt.Errorf("%s cascade: nil rate limiter", capability)
	}
	o := cascadeOptions{
		callTimeout:      10 * time.Second,
		upstreamCooldown: time.Minute,
		metrics:          metrics.Nop{},
		l:                logger.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	ordered := append([]Step[T](nil), steps...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority > ordered[j].Priority })

	return &Cascade[T]{
		capability:       capability,
		steps:            ordered,
		limiter:          limiter,
		callTimeout:      o.callTimeout,
		upstreamCooldown: o.upstreamCooldown,
		metrics:          o.metrics,
		l:                o.l.Component("cascade").With(logger.String("capability", string(capability))),
	}, nil
}

// Providers returns provider names in the order they are tried.
func (c *Cascade[T]) Providers() []string {
	out := make([]string, len(c.steps))
	for i, s := range c.steps {
		out[i] = s.Provider
	}
	return out
}

// Fetch never returns an error: failures are logged, recorded on the result
// and the next provider is tried.
func (c *Cascade[T]) Fetch(ctx context.Context, subject string) Result[T] {
	var res Result[T]
	start := time.Now()
	defer func() {
		c.metrics.RecordLatency("cascade_"+string(c.capability), time.Since(start).Seconds())
	}()

	for i, step := range c.steps {
		if ctx.Err() != nil {
			break
		}
		if !c.limiter.Acquire(step.Provider, 1) {
			res.Attempts = append(res.Attempts, Attempt{Provider: step.Provider, Outcome: OutcomeThrottled})
			c.metrics.RecordProviderCall(step.Provider, string(OutcomeThrottled))
			c.l.Debug("provider throttled, trying next",
				logger.String("provider", step.Provider),
				logger.String("subject", subject))
			continue
		}

		v, att := c.call(ctx, step, subject)
		res.Attempts = append(res.Attempts, att)
		c.metrics.RecordProviderCall(step.Provider, string(att.Outcome))
		if att.Outcome == OutcomeOK {
			if i > 0 {
				c.metrics.RecordFallback(string(c.capability))
			}
			res.Value = v
			res.Source = step.Provider
			return res
		}
	}

	res.Unavailable = true
	c.l.Warn("all providers exhausted",
		logger.String("subject", subject),
		logger.Int("attempts", len(res.Attempts)))
	return res
}

func (c *Cascade[T]) call(ctx context.Context, step Step[T], subject string) (T, Attempt) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	start := time.Now()
	v, err := step.Call(callCtx, subject)
	att := Attempt{Provider: step.Provider, Latency: time.Since(start), Outcome: OutcomeOK}
	if err == nil {
		return v, att
	}

	att.Error = err.Error()
	switch {
	case errors.Is(err, ErrRateLimited):
		att.Outcome = OutcomeUpstream429
		if berr := c.limiter.Block(step.Provider, c.upstreamCooldown); berr != nil {
			c.l.Error("block provider", logger.String("provider", step.Provider), logger.Error(berr))
		}
	case errors.Is(err, ErrNoData):
		att.Outcome = OutcomeNoData
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		att.Outcome = OutcomeTimeout
	default:
		att.Outcome = OutcomeError
	}
	c.l.Warn("provider call failed",
		logger.String("provider", step.Provider),
		logger.String("subject", subject),
		logger.String("outcome", string(att.Outcome)),
		logger.Duration("latency_ms", att.Latency),
		logger.Error(err))

	var zero T
	return zero, att
}
