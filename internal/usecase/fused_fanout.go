package usecase

import (
	"context"
	"time"

	"FinFuse/internal/domain/models"
	drepo "FinFuse/internal/domain/repository"
	"FinFuse/pkg/logger"
)

// Broadcaster pushes a fused signal to live subscribers.
type Broadcaster interface {
	Broadcast(f models.FusedSignal)
}

// FusedFanout forwards every fused signal to the configured sinks. Sinks are
// optional; a failing sink is logged and never blocks the others.
type FusedFanout struct {
	publisher drepo.FusedPublisher
	store     drepo.SignalStore
	hub       Broadcaster
	timeout   time.Duration
	metrics   drepo.Metrics
	l         *logger.Logger
}

func NewFusedFanout(publisher drepo.FusedPublisher, store drepo.SignalStore, hub Broadcaster, timeout time.Duration, metrics drepo.Metrics, l *logger.Logger) *FusedFanout {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &FusedFanout{
		publisher: publisher,
		store:     store,
		hub:       hub,
		timeout:   timeout,
		metrics:   metrics,
		l:         l.Component("fanout"),
	}
}

// OnFused matches the fusion engine's listener signature.
func (f *FusedFanout) OnFused(ctx context.Context, fs models.FusedSignal) {
	if f.hub != nil {
		f.hub.Broadcast(fs)
	}
	if f.publisher == nil && f.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
	defer cancel()
	if f.publisher != nil {
		if err := f.publisher.PublishFused(ctx, fs); err != nil {
			f.metrics.RecordError("fused_publish")
			f.l.Error("publish fused", logger.String("subject", fs.Subject), logger.Error(err))
		}
	}
	if f.store != nil {
		if err := f.store.SaveFused(ctx, fs); err != nil {
			f.metrics.RecordError("fused_store")
			f.l.Error("store fused", logger.String("subject", fs.Subject), logger.Error(err))
		}
	}
}

// RecordOutcome persists an outcome when a store is configured.
func (f *FusedFanout) RecordOutcome(ctx context.Context, rec models.PerformanceRecord, correct bool) {
	if f.store == nil {
		return
	}
	if err := f.store.SaveOutcome(ctx, rec.Type, correct, rec.Weight); err != nil {
		f.metrics.RecordError("outcome_store")
		f.l.Error("store outcome", logger.String("type", string(rec.Type)), logger.Error(err))
	}
}
