package fusion

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"FinFuse/internal/domain/models"
	drepo "FinFuse/internal/domain/repository"
	"FinFuse/pkg/logger"
	"FinFuse/pkg/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceLookup supplies the current price used for entry/target/stop levels.
type PriceLookup interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, bool)
}

// Listener is called after a fused signal is computed and stored.
type Listener func(ctx context.Context, f models.FusedSignal)

// Engine keeps the active signal set and the fused conclusion per subject.
//
// Lock order is mu then perfMu. Price lookups run outside both.
type Engine struct {
	cfg Config

	mu     sync.Mutex
	active map[string][]models.Signal
	fused  map[string]models.FusedSignal
	gen    map[string]uint64 // bumped on every evaluation of a subject

	perfMu  sync.RWMutex
	weights WeightTable
	perf    map[models.SignalType]*models.PerformanceRecord

	listenersMu sync.RWMutex
	listeners   []Listener

	prices  PriceLookup
	dropped atomic.Int64
	now     func() time.Time
	metrics drepo.Metrics
	l       *logger.Logger
}

// Option configures Engine.
type Option func(*Engine)

func WithPriceLookup(p PriceLookup) Option { return func(e *Engine) { e.prices = p } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithMetrics(m drepo.Metrics) Option { return func(e *Engine) { e.metrics = m } }

func WithLogger(l *logger.Logger) Option { return func(e *Engine) { e.l = l } }

// NewEngine creates an engine seeded with the base weight table.
func NewEngine(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:     cfg.withDefaults(),
		active:  make(map[string][]models.Signal),
		fused:   make(map[string]models.FusedSignal),
		gen:     make(map[string]uint64),
		perf:    make(map[models.SignalType]*models.PerformanceRecord),
		now:     time.Now,
		metrics: metrics.Nop{},
		l:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.weights = newWeightTable(e.now())
	e.l = e.l.Component("fusion")
	return e
}

// OnFused registers a listener for freshly fused signals.
func (e *Engine) OnFused(fn Listener) {
	e.listenersMu.Lock()
	e.listeners = append(e.listeners, fn)
	e.listenersMu.Unlock()
}

// AddSignal stores s, prunes expired signals and re-evaluates the affected
// subjects. Malformed signals are dropped and reported as not accepted. The
// returned fused signal is the subject's conclusion after the update, if any.
func (e *Engine) AddSignal(ctx context.Context, s models.Signal) (*models.FusedSignal, bool) {
	now := e.now()
	s, ok := e.prepare(s, now)
	if !ok {
		e.dropped.Add(1)
		e.l.Debug("signal dropped", logger.String("subject", s.Subject), logger.String("type", string(s.Type)))
		return nil, false
	}
	if s.Expired(now) {
		e.dropped.Add(1)
		return nil, false
	}

	e.mu.Lock()
	e.active[s.Subject] = append(e.active[s.Subject], s)
	touched := e.pruneLocked(now)
	touched[s.Subject] = struct{}{}
	pending := make([]pendingFusion, 0, len(touched))
	for subject := range touched {
		if p, ok := e.evaluateLocked(subject, now); ok {
			pending = append(pending, p)
		}
	}
	e.mu.Unlock()

	var result *models.FusedSignal
	for _, p := range pending {
		f, stored := e.finish(ctx, p)
		if stored && f.Subject == s.Subject {
			fc := f
			result = &fc
		}
	}
	if result == nil {
		if f, ok := e.FusedFor(s.Subject); ok {
			result = &f
		}
	}
	return result, true
}

type pendingFusion struct {
	fused models.FusedSignal
	gen   uint64
}

// prepare validates and fills defaults.
func (e *Engine) prepare(s models.Signal, now time.Time) (models.Signal, bool) {
	s.Subject = strings.ToUpper(strings.TrimSpace(s.Subject))
	if s.Subject == "" || !s.Type.Valid() || !s.Direction.Valid() {
		return s, false
	}
	if math.IsNaN(s.Strength) || s.Strength < 0 || s.Strength > 1 {
		return s, false
	}
	if s.Source == "" {
		s.Source = "unknown"
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = s.CreatedAt.Add(e.cfg.DefaultExpiry)
	}
	return s, true
}

// pruneLocked drops expired signals everywhere and returns the subjects that
// lost any. Caller holds mu.
func (e *Engine) pruneLocked(now time.Time) map[string]struct{} {
	touched := make(map[string]struct{})
	for subject, sigs := range e.active {
		kept := sigs[:0]
		for _, s := range sigs {
			if !s.Expired(now) {
				kept = append(kept, s)
			}
		}
		if len(kept) == len(sigs) {
			continue
		}
		touched[subject] = struct{}{}
		if len(kept) == 0 {
			delete(e.active, subject)
			continue
		}
		e.active[subject] = kept
	}
	return touched
}

// refreshLocked prunes expired signals and re-evaluates the subjects that
// lost any, so reads never serve a fusion built from expired signals. A
// fusion that still holds keeps its entry price. Caller holds mu.
func (e *Engine) refreshLocked(now time.Time) {
	for subject := range e.pruneLocked(now) {
		p, ok := e.evaluateLocked(subject, now)
		if !ok {
			continue
		}
		f := p.fused
		f.Entry, f.Target, f.Stop = e.Levels(e.fused[subject].Entry, f.Direction, f.Conviction)
		e.fused[subject] = f
	}
}

// evaluateLocked applies the directional rule to subject. When it holds the
// returned fusion still lacks price levels; otherwise any stored fusion for
// the subject is removed. Caller holds mu.
func (e *Engine) evaluateLocked(subject string, now time.Time) (pendingFusion, bool) {
	e.gen[subject]++
	gen := e.gen[subject]

	var bull, bear []models.Signal
	for _, s := range e.active[subject] {
		switch s.Direction {
		case models.Bullish:
			bull = append(bull, s)
		case models.Bearish:
			bear = append(bear, s)
		}
	}

	var dir models.Direction
	var contributing []models.Signal
	switch {
	case len(bull) >= e.cfg.MinSignals && float64(len(bull)) > e.cfg.DirectionalRatio*float64(len(bear)):
		dir, contributing = models.Bullish, bull
	case len(bear) >= e.cfg.MinSignals && float64(len(bear)) > e.cfg.DirectionalRatio*float64(len(bull)):
		dir, contributing = models.Bearish, bear
	default:
		if _, had := e.fused[subject]; had {
			delete(e.fused, subject)
			e.l.Debug("fusion dissolved", logger.String("subject", subject))
		}
		return pendingFusion{}, false
	}

	f := models.FusedSignal{
		Subject:     subject,
		Direction:   dir,
		Conviction:  e.Conviction(contributing),
		SignalCount: len(contributing),
		Sources:     uniqueSources(contributing),
		Types:       uniqueTypes(contributing),
		Horizon:     voteHorizon(contributing),
		CreatedAt:   now,
	}
	return pendingFusion{fused: f, gen: gen}, true
}

// finish attaches price levels, stores the fusion unless a newer evaluation
// of the subject happened meanwhile, and notifies listeners.
func (e *Engine) finish(ctx context.Context, p pendingFusion) (models.FusedSignal, bool) {
	f := p.fused
	if e.prices != nil {
		pctx, cancel := context.WithTimeout(ctx, e.cfg.PriceTimeout)
		price, ok := e.prices.Price(pctx, f.Subject)
		cancel()
		if ok {
			f.Entry, f.Target, f.Stop = e.Levels(price, f.Direction, f.Conviction)
		}
	}

	e.mu.Lock()
	if e.gen[f.Subject] != p.gen {
		e.mu.Unlock()
		return f, false
	}
	e.fused[f.Subject] = f
	e.mu.Unlock()

	e.metrics.RecordFused(string(f.Direction))
	e.l.Info("signal fused",
		logger.String("subject", f.Subject),
		logger.String("direction", string(f.Direction)),
		logger.Float64("conviction", f.Conviction),
		logger.Int("signals", f.SignalCount))

	e.listenersMu.RLock()
	listeners := append([]Listener(nil), e.listeners...)
	e.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, f)
	}
	return f, true
}

// Conviction is the |weight|-weighted mean strength plus source-diversity,
// type-diversity and high-value bonuses, clamped to [0,1].
func (e *Engine) Conviction(signals []models.Signal) float64 {
	if len(signals) == 0 {
		return 0
	}
	e.perfMu.RLock()
	var sumW, sumWS float64
	for _, s := range signals {
		w := math.Abs(e.weights.Weights[s.Type])
		sumW += w
		sumWS += w * s.Strength
	}
	e.perfMu.RUnlock()

	var mean float64
	if sumW > 0 {
		mean = sumWS / sumW
	} else {
		for _, s := range signals {
			mean += s.Strength
		}
		mean /= float64(len(signals))
	}

	types := uniqueTypes(signals)
	score := mean +
		math.Min(e.cfg.SourceBonusPer*float64(len(uniqueSources(signals))), e.cfg.SourceBonusCap) +
		math.Min(e.cfg.TypeBonusPer*float64(len(types)), e.cfg.TypeBonusCap)
	for _, t := range types {
		score += e.cfg.HighValueBonus[t]
	}
	return clamp01(score)
}

// Levels derives entry, target and stop from price. Higher conviction widens
// the target; the stop sits at StopRatio of the target distance on the other side.
func (e *Engine) Levels(price decimal.Decimal, dir models.Direction, conviction float64) (entry, target, stop decimal.Decimal) {
	if !price.IsPositive() {
		return decimal.Zero, decimal.Zero, decimal.Zero
	}
	targetPct := decimal.NewFromFloat(e.cfg.TargetBase + e.cfg.TargetScale*clamp01(conviction))
	stopPct := targetPct.Mul(decimal.NewFromFloat(e.cfg.StopRatio))
	one := decimal.NewFromInt(1)

	entry = price
	switch dir {
	case models.Bearish:
		target = price.Mul(one.Sub(targetPct))
		stop = price.Mul(one.Add(stopPct))
	default:
		target = price.Mul(one.Add(targetPct))
		stop = price.Mul(one.Sub(stopPct))
	}
	return entry, target.Round(4), stop.Round(4)
}

// TopOpportunities returns fused signals with conviction >= minConviction,
// optionally filtered by direction ("" for any), highest conviction first.
func (e *Engine) TopOpportunities(minConviction float64, dir models.Direction) []models.FusedSignal {
	now := e.now()
	e.mu.Lock()
	e.refreshLocked(now)
	out := make([]models.FusedSignal, 0, len(e.fused))
	for _, f := range e.fused {
		if f.Conviction < minConviction {
			continue
		}
		if dir != "" && f.Direction != dir {
			continue
		}
		out = append(out, cloneFused(f))
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Conviction != out[j].Conviction {
			return out[i].Conviction > out[j].Conviction
		}
		return out[i].Subject < out[j].Subject
	})
	return out
}

// UpdateSignalPerformance records an outcome for t. From AdaptAfter outcomes
// on, every update blends the weight towards observed accuracy and bumps the
// table version. Counters and weights change under the same lock.
func (e *Engine) UpdateSignalPerformance(t models.SignalType, correct bool) (models.PerformanceRecord, error) {
	if !t.Valid() {
		return models.PerformanceRecord{}, fmt.Errorf("fusion: unknown signal type %q", t)
	}
	e.perfMu.Lock()
	defer e.perfMu.Unlock()

	rec, ok := e.perf[t]
	if !ok {
		rec = &models.PerformanceRecord{Type: t}
		e.perf[t] = rec
	}
	rec.Total++
	if correct {
		rec.Correct++
	}
	if rec.Total >= e.cfg.AdaptAfter {
		e.weights.Weights[t] = adapt(e.weights.Weights[t], baseWeights[t], rec.Accuracy(), e.cfg.AdaptRate)
		e.weights.Version++
		e.weights.UpdatedAt = e.now()
	}
	rec.Weight = e.weights.Weights[t]
	return *rec, nil
}

// Weights returns a snapshot of the current weight table.
func (e *Engine) Weights() WeightTable {
	e.perfMu.RLock()
	defer e.perfMu.RUnlock()
	return e.weights.clone()
}

// Performance returns one record per type with at least one outcome.
func (e *Engine) Performance() []models.PerformanceRecord {
	e.perfMu.RLock()
	defer e.perfMu.RUnlock()
	out := make([]models.PerformanceRecord, 0, len(e.perf))
	for _, t := range models.SignalTypes {
		if rec, ok := e.perf[t]; ok {
			r := *rec
			r.Weight = e.weights.Weights[t]
			out = append(out, r)
		}
	}
	return out
}

// ActiveSignals returns the unexpired signals for subject.
func (e *Engine) ActiveSignals(subject string) []models.Signal {
	subject = strings.ToUpper(strings.TrimSpace(subject))
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []models.Signal
	for _, s := range e.active[subject] {
		if !s.Expired(now) {
			out = append(out, s)
		}
	}
	return out
}

// Subjects returns every subject with at least one stored signal, sorted.
func (e *Engine) Subjects() []string {
	e.mu.Lock()
	out := make([]string, 0, len(e.active))
	for s := range e.active {
		out = append(out, s)
	}
	e.mu.Unlock()
	sort.Strings(out)
	return out
}

// FusedFor returns the current fusion for subject.
func (e *Engine) FusedFor(subject string) (models.FusedSignal, bool) {
	subject = strings.ToUpper(strings.TrimSpace(subject))
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refreshLocked(now)
	f, ok := e.fused[subject]
	return cloneFused(f), ok
}

// Dropped counts signals rejected as malformed or already expired.
func (e *Engine) Dropped() int64 { return e.dropped.Load() }

// voteHorizon counts the canonical bucket of each contributing type. The
// leading bucket wins only with at least twice the runner-up's votes.
func voteHorizon(signals []models.Signal) models.Horizon {
	counts := map[models.Horizon]int{}
	for _, t := range uniqueTypes(signals) {
		counts[typeHorizons[t]]++
	}
	var first, second int
	var winner models.Horizon
	for _, h := range []models.Horizon{models.HorizonShort, models.HorizonMedium, models.HorizonLong} {
		c := counts[h]
		switch {
		case c > first:
			second, first, winner = first, c, h
		case c > second:
			second = c
		}
	}
	if first == 0 || first < 2*second {
		return models.HorizonMedium
	}
	return winner
}

func uniqueSources(signals []models.Signal) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, s := range signals {
		if _, ok := seen[s.Source]; !ok {
			seen[s.Source] = struct{}{}
			out = append(out, s.Source)
		}
	}
	sort.Strings(out)
	return out
}

func uniqueTypes(signals []models.Signal) []models.SignalType {
	seen := map[models.SignalType]struct{}{}
	var out []models.SignalType
	for _, s := range signals {
		if _, ok := seen[s.Type]; !ok {
			seen[s.Type] = struct{}{}
			out = append(out, s.Type)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func cloneFused(f models.FusedSignal) models.FusedSignal {
	f.Sources = append([]string(nil), f.Sources...)
	f.Types = append([]models.SignalType(nil), f.Types...)
	return f
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
