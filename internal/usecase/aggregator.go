package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"FinFuse/internal/domain/models"
	drepo "FinFuse/internal/domain/repository"
	"FinFuse/internal/service/cache"
	"FinFuse/pkg/logger"
	"FinFuse/pkg/metrics"

	"golang.org/x/sync/errgroup"
)

const (
	highTierAbove   = 0.8
	mediumTierAbove = 0.6
)

// Aggregator collects from every configured source, one priority bucket at a
// time, with bounded parallelism inside a bucket.
type Aggregator struct {
	sources       []drepo.Source
	cache         *cache.Cache
	maxParallel   int
	sourceTimeout time.Duration
	now           func() time.Time
	metrics       drepo.Metrics
	l             *logger.Logger
}

// AggregatorOption configures Aggregator.
type AggregatorOption func(*Aggregator)

// WithMaxParallel bounds concurrent sources within one priority bucket.
func WithMaxParallel(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxParallel = n
		}
	}
}

// WithSourceTimeout sets the per-source deadline.
func WithSourceTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d > 0 {
			a.sourceTimeout = d
		}
	}
}

func WithAggregatorMetrics(m drepo.Metrics) AggregatorOption {
	return func(a *Aggregator) { a.metrics = m }
}

func WithAggregatorLogger(l *logger.Logger) AggregatorOption {
	return func(a *Aggregator) { a.l = l }
}

// NewAggregator creates an aggregator. c may be nil to disable caching.
func NewAggregator(sources []drepo.Source, c *cache.Cache, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		sources:       sources,
		cache:         c,
		maxParallel:   4,
		sourceTimeout: 15 * time.Second,
		now:           time.Now,
		metrics:       metrics.Nop{},
		l:             logger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.l = a.l.Component("aggregator")
	return a
}

// Sources returns the configured source names.
func (a *Aggregator) Sources() []string {
	out := make([]string, len(a.sources))
	for i, s := range a.sources {
		out[i] = s.Name()
	}
	return out
}

type sourceOutcome struct {
	indications []models.Indication
	hit         bool
	err         error
}

// CollectAll never fails: every source error lands in the result's error list.
func (a *Aggregator) CollectAll(ctx context.Context, subjects []string) *models.AggregateResult {
	start := a.now()
	subjects = normalizeSubjects(subjects)
	res := &models.AggregateResult{
		Subjects:    subjects,
		Results:     make(map[string]models.SourceResult, len(a.sources)),
		CollectedAt: start,
	}
	if len(subjects) == 0 {
		return res
	}

	var mu sync.Mutex
	for _, bucket := range priorityBuckets(a.sources) {
		if err := ctx.Err(); err != nil {
			for _, src := range bucket {
				res.Errors = append(res.Errors, models.ErrorEntry{Source: src.Name(), Error: err.Error(), At: a.now()})
			}
			res.Stats.SourcesQueried += len(bucket)
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.maxParallel)
		for _, src := range bucket {
			src := src
			g.Go(func() error {
				taskStart := a.now()
				out := a.collectOne(gctx, src, subjects)

				mu.Lock()
				defer mu.Unlock()
				res.Stats.SourcesQueried++
				if out.err != nil {
					a.metrics.RecordSourceError(src.Name())
					res.Errors = append(res.Errors, models.ErrorEntry{Source: src.Name(), Error: out.err.Error(), At: a.now()})
					a.l.Warn("source failed",
						logger.String("source", src.Name()),
						logger.Strings("subjects", subjects),
						logger.Error(out.err))
					return nil
				}
				if out.hit {
					res.Stats.CacheHits++
				}
				res.Stats.DataPoints += len(out.indications)
				res.Results[src.Name()] = models.SourceResult{
					Source:      src.Name(),
					Priority:    src.Priority(),
					Indications: out.indications,
					CacheHit:    out.hit,
					Duration:    a.now().Sub(taskStart),
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	sort.SliceStable(res.Errors, func(i, j int) bool { return res.Errors[i].Source < res.Errors[j].Source })
	res.Stats.Errors = len(res.Errors)
	res.Stats.Duration = a.now().Sub(start)
	a.metrics.RecordLatency("collect_all", res.Stats.Duration.Seconds())
	a.l.Info("collection finished",
		logger.Int("subjects", len(subjects)),
		logger.Int("sources", res.Stats.SourcesQueried),
		logger.Int("errors", res.Stats.Errors),
		logger.Int("cache_hits", res.Stats.CacheHits),
		logger.Duration("duration_ms", res.Stats.Duration))
	return res
}

// collectOne runs one source under its own deadline. A source that ignores
// its context is abandoned when the deadline passes.
func (a *Aggregator) collectOne(ctx context.Context, src drepo.Source, subjects []string) sourceOutcome {
	ctx, cancel := context.WithTimeout(ctx, a.sourceTimeout)
	defer cancel()

	done := make(chan sourceOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- sourceOutcome{err: fmt.Errorf("source %s panicked: %v", src.Name(), r)}
			}
		}()
		load := func(ctx context.Context) ([]models.Indication, error) {
			return src.Collect(ctx, subjects)
		}
		if a.cache == nil {
			inds, err := load(ctx)
			done <- sourceOutcome{indications: inds, err: err}
			return
		}
		inds, hit, err := cache.GetOrLoad(ctx, a.cache, cache.Key(src.Name(), subjects), load)
		done <- sourceOutcome{indications: inds, hit: hit, err: err}
	}()

	select {
	case out := <-done:
		return out
	case <-ctx.Done():
		return sourceOutcome{err: fmt.Errorf("source %s: %w", src.Name(), ctx.Err())}
	}
}

// ProcessIntelligence tallies positive against total indications per subject
// across sources and assigns a conviction tier.
func (a *Aggregator) ProcessIntelligence(res *models.AggregateResult) []models.SubjectIntel {
	return ProcessIntelligence(res)
}

// ProcessIntelligence is the stateless form of Aggregator.ProcessIntelligence.
func ProcessIntelligence(res *models.AggregateResult) []models.SubjectIntel {
	if res == nil {
		return nil
	}
	type tally struct {
		positive, total int
		sources         map[string]struct{}
	}
	tallies := make(map[string]*tally, len(res.Subjects))
	for _, s := range res.Subjects {
		tallies[s] = &tally{sources: map[string]struct{}{}}
	}
	for name, sr := range res.Results {
		for _, ind := range sr.Indications {
			subject := strings.ToUpper(strings.TrimSpace(ind.Subject))
			t, ok := tallies[subject]
			if !ok {
				continue
			}
			t.total++
			if ind.Positive {
				t.positive++
			}
			t.sources[name] = struct{}{}
		}
	}

	out := make([]models.SubjectIntel, 0, len(res.Subjects))
	for _, s := range res.Subjects {
		t := tallies[s]
		intel := models.SubjectIntel{Subject: s, Positive: t.positive, Total: t.total, Tier: models.TierLow}
		if t.total > 0 {
			intel.Score = float64(t.positive) / float64(t.total)
		}
		intel.Tier = tierFor(intel.Score)
		for src := range t.sources {
			intel.Sources = append(intel.Sources, src)
		}
		sort.Strings(intel.Sources)
		out = append(out, intel)
	}
	return out
}

func tierFor(score float64) models.ConvictionTier {
	switch {
	case score > highTierAbove:
		return models.TierHigh
	case score > mediumTierAbove:
		return models.TierMedium
	}
	return models.TierLow
}

// priorityBuckets groups sources by priority, highest first, keeping
// configuration order inside a bucket.
func priorityBuckets(sources []drepo.Source) [][]drepo.Source {
	byPriority := make(map[int][]drepo.Source)
	var priorities []int
	for _, s := range sources {
		p := s.Priority()
		if _, ok := byPriority[p]; !ok {
			priorities = append(priorities, p)
		}
		byPriority[p] = append(byPriority[p], s)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(priorities)))

	out := make([][]drepo.Source, 0, len(priorities))
	for _, p := range priorities {
		out = append(out, byPriority[p])
	}
	return out
}

func normalizeSubjects(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
