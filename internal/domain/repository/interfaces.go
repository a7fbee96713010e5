package repository

import (
	"context"

	"FinFuse/internal/domain/models"
)

// QuoteProvider fetches a quote from one external provider and normalizes it.
type QuoteProvider interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string) (*models.NormalizedQuote, error)
}

// Source is one collection source driven by the aggregator.
type Source interface {
	Name() string
	Priority() int
	Collect(ctx context.Context, subjects []string) ([]models.Indication, error)
}

// FusedPublisher receives every freshly computed fused signal.
type FusedPublisher interface {
	PublishFused(ctx context.Context, f models.FusedSignal) error
}

// SignalStore persists fused signals and recorded outcomes.
type SignalStore interface {
	SaveFused(ctx context.Context, f models.FusedSignal) error
	SaveOutcome(ctx context.Context, t models.SignalType, correct bool, weight float64) error
	Health(ctx context.Context) error
	Close() error
}

type Metrics interface {
	RecordProviderCall(provider, result string)
	RecordRateLimited(provider string)
	RecordCooldown(provider, reason string)
	RecordFallback(capability string)
	RecordCacheLookup(hit bool)
	RecordSourceError(source string)
	RecordFused(direction string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordLastPrice(symbol string, price float64)
}
