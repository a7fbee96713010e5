//go:build wireinject
// +build wireinject

package di

import (
	"FinFuse/pkg/config"
	"FinFuse/pkg/logger"
	"FinFuse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config, l *logger.Logger) (*server.App, func(), error) {
	wire.Build(
		// Metrics
		ProvideMetrics,

		// Providers and rate limiting
		ProvideRateLimiter,
		ProvideHTTPClient,
		ProvideQuoteService,

		// Collection
		ProvideCacheStore,
		ProvideCollectCache,
		ProvideSources,
		ProvideAggregator,

		// Entities and fusion
		ProvideResolver,
		ProvidePriceLookup,
		ProvideFusionEngine,

		// Fan-out sinks
		ProvideHub,
		ProvideSignalStore,
		ProvideKafkaProducer,
		ProvideFusedPublisher,
		ProvideFanout,

		// Ingest
		ProvideKafkaConsumer,
		ProvideKafkaSignalsHandler,

		// HTTP and application server
		ProvideAPIHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}
