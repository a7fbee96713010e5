package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	providerCalls *prometheus.CounterVec
	rateLimited   *prometheus.CounterVec
	cooldowns     *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	sourceErrors  *prometheus.CounterVec
	fused         *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

var (
	defaultOnce     sync.Once
	defaultRecorder *Recorder
)

// New returns the process-wide recorder registered on the default registry.
func New() *Recorder {
	defaultOnce.Do(func() {
		defaultRecorder = NewWithRegistry(prometheus.DefaultRegisterer)
	})
	return defaultRecorder
}

// NewWithRegistry creates a recorder registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfuse_provider_calls_total",
				Help: "Provider calls by result",
			},
			[]string{"provider", "result"},
		),
		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfuse_rate_limited_total",
				Help: "Permit requests rejected by the rate limiter",
			},
			[]string{"provider"},
		),
		cooldowns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfuse_provider_cooldowns_total",
				Help: "Cooldowns started per provider",
			},
			[]string{"provider", "reason"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfuse_cascade_fallbacks_total",
				Help: "Times a cascade moved past its first provider",
			},
			[]string{"capability"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfuse_cache_lookups_total",
				Help: "Collection cache lookups by outcome",
			},
			[]string{"outcome"},
		),
		sourceErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfuse_source_errors_total",
				Help: "Collection source failures",
			},
			[]string{"source"},
		),
		fused: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfuse_fused_signals_total",
				Help: "Fused signals computed",
			},
			[]string{"direction"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfuse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finfuse_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finfuse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
	if reg != nil {
		reg.MustRegister(r.providerCalls, r.rateLimited, r.cooldowns, r.fallbacks, r.cacheLookups,
			r.sourceErrors, r.fused, r.errorsTotal, r.lastPrice, r.latency)
	}
	return r
}

func (r *Recorder) RecordProviderCall(provider, result string) {
	r.providerCalls.WithLabelValues(provider, result).Inc()
}

func (r *Recorder) RecordRateLimited(provider string) {
	r.rateLimited.WithLabelValues(provider).Inc()
}

func (r *Recorder) RecordCooldown(provider, reason string) {
	r.cooldowns.WithLabelValues(provider, reason).Inc()
}

func (r *Recorder) RecordFallback(capability string) {
	r.fallbacks.WithLabelValues(capability).Inc()
}

func (r *Recorder) RecordCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	r.cacheLookups.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordSourceError(source string) {
	r.sourceErrors.WithLabelValues(source).Inc()
}

func (r *Recorder) RecordFused(direction string) {
	r.fused.WithLabelValues(direction).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
