package di

import (
	"context"
	"fmt"
	"time"

	"FinFuse/internal/domain/models"
	drepo "FinFuse/internal/domain/repository"
	"FinFuse/internal/handler/api"
	"FinFuse/internal/handler/ws"
	internalrepo "FinFuse/internal/repository"
	"FinFuse/internal/service/cache"
	"FinFuse/internal/service/provider"
	"FinFuse/internal/service/ratelimit"
	"FinFuse/internal/services/entity"
	"FinFuse/internal/services/fusion"
	"FinFuse/internal/services/sources"
	"FinFuse/internal/usecase"
	pkgcache "FinFuse/pkg/cache"
	pkgch "FinFuse/pkg/clickhouse"
	"FinFuse/pkg/config"
	xhttp "FinFuse/pkg/http"
	pkgkafka "FinFuse/pkg/kafka"
	"FinFuse/pkg/logger"
	"FinFuse/pkg/metrics"
	"FinFuse/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
)

const fanoutTimeout = 5 * time.Second

// ProvideMetrics creates the Prometheus recorder on the default registry.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvideRateLimiter creates one bucket and quota window per configured provider.
func ProvideRateLimiter(cfg *config.Config, m drepo.Metrics, l *logger.Logger) *ratelimit.Manager {
	return ratelimit.NewManager(cfg.Providers,
		ratelimit.WithMetrics(m),
		ratelimit.WithLogger(l),
		ratelimit.WithCooldowns(cfg.RateLimit.DailyCooldown, cfg.RateLimit.MonthlyCooldown),
		ratelimit.WithNoDailyLimitBonus(cfg.RateLimit.NoDailyLimitBonus),
	)
}

// ProvideHTTPClient creates the outbound client shared by provider adapters.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(
		xhttp.WithTimeout(cfg.Quotes.CallTimeout),
		xhttp.WithUserAgent("finfuse/1.0"),
	)
}

// ProvideQuoteService builds the quote cascade. It fails when no usable
// quote provider is left after dropping those without credentials.
func ProvideQuoteService(cfg *config.Config, limiter *ratelimit.Manager, client *xhttp.Client, m drepo.Metrics, l *logger.Logger) (*provider.QuoteService, error) {
	qs, err := provider.NewQuoteService(cfg.Providers, limiter, client,
		provider.WithCallTimeout(cfg.Quotes.CallTimeout),
		provider.WithUpstreamCooldown(cfg.RateLimit.UpstreamCooldown),
		provider.WithCascadeMetrics(m),
		provider.WithCascadeLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("quote service: %w", err)
	}
	return qs, nil
}

// ProvideCacheStore builds the in-process LRU, backed by Redis when enabled.
func ProvideCacheStore(cfg *config.Config, m drepo.Metrics, l *logger.Logger) (pkgcache.Store, func(), error) {
	mem := pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize))
	if !cfg.Cache.Redis.Enabled {
		return mem, func() { _ = mem.Close() }, nil
	}

	rc := cfg.Cache.Redis
	redis, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(rc.Addr),
		pkgcache.WithRedisPassword(rc.Password),
		pkgcache.WithRedisDB(rc.DB),
		pkgcache.WithRedisPool(rc.PoolSize, rc.MinIdleConns, rc.PoolTimeout),
		pkgcache.WithRedisPrefix(rc.Prefix),
	)
	if err != nil {
		_ = mem.Close()
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	cl := l.Component("cache")
	store := pkgcache.NewLayeredCache(mem, redis, func(op string, err error) {
		m.RecordError("cache_l2_" + op)
		cl.Warn("redis unavailable, serving from memory", logger.String("op", op), logger.Error(err))
	})
	return store, func() { _ = store.Close() }, nil
}

// ProvideCollectCache creates the source-result cache.
func ProvideCollectCache(store pkgcache.Store, cfg *config.Config, m drepo.Metrics, l *logger.Logger) *cache.Cache {
	return cache.New(store, cfg.Cache.TTL, cache.WithMetrics(m), cache.WithLogger(l))
}

// ProvidePriceLookup puts a short-lived cache in front of the quote cascade
// for fused entry levels.
func ProvidePriceLookup(store pkgcache.Store, cfg *config.Config, quotes *provider.QuoteService, m drepo.Metrics, l *logger.Logger) *cache.Prices {
	c := cache.New(store, cfg.Quotes.PriceTTL, cache.WithName("price_cache"), cache.WithMetrics(m), cache.WithLogger(l))
	return cache.NewPrices(quotes, c)
}

// ProvideFusionEngine creates the engine with cached live prices.
func ProvideFusionEngine(cfg *config.Config, prices *cache.Prices, m drepo.Metrics, l *logger.Logger) *fusion.Engine {
	return fusion.NewEngine(cfg.Fusion,
		fusion.WithPriceLookup(prices),
		fusion.WithMetrics(m),
		fusion.WithLogger(l),
	)
}

// ProvideSources lists every collection source: the quote cascade, the
// fusion engine's active signals and each usable intel provider.
func ProvideSources(cfg *config.Config, quotes *provider.QuoteService, engine *fusion.Engine, client *xhttp.Client, limiter *ratelimit.Manager, l *logger.Logger) []drepo.Source {
	srcs := []drepo.Source{
		sources.NewQuotes(quotes, cfg.Aggregator.QuotesPriority, cfg.Aggregator.MaxParallel),
		sources.NewSignals(engine, cfg.Aggregator.SignalsPriority),
	}
	for _, p := range cfg.Providers {
		if !p.Has(models.CapabilityIntel) {
			continue
		}
		if !p.Usable() {
			l.Warn("skipping intel source without credential",
				logger.String("provider", p.Name),
				logger.String("env", p.CredentialEnv()))
			continue
		}
		srcs = append(srcs, sources.NewHTTP(p, client, limiter,
			sources.WithMaxWait(cfg.RateLimit.MaxWait),
			sources.WithUpstreamCooldown(cfg.RateLimit.UpstreamCooldown),
			sources.WithSourceLogger(l)))
	}
	return srcs
}

// ProvideAggregator creates the multi-source collector.
func ProvideAggregator(srcs []drepo.Source, c *cache.Cache, cfg *config.Config, m drepo.Metrics, l *logger.Logger) *usecase.Aggregator {
	agg := usecase.NewAggregator(srcs, c,
		usecase.WithMaxParallel(cfg.Aggregator.MaxParallel),
		usecase.WithSourceTimeout(cfg.Aggregator.SourceTimeout),
		usecase.WithAggregatorMetrics(m),
		usecase.WithAggregatorLogger(l),
	)
	l.Info("collection sources ready", logger.Strings("sources", agg.Sources()))
	return agg
}

// ProvideResolver creates the entity resolver.
func ProvideResolver(l *logger.Logger) *entity.Resolver {
	return entity.NewResolver(entity.WithLogger(l))
}

// ProvideHub creates the fused-signal websocket hub.
func ProvideHub(l *logger.Logger) *ws.Hub {
	return ws.NewHub(l)
}

// ProvideSignalStore connects ClickHouse and creates the history tables. It
// returns a nil store when ClickHouse is disabled.
func ProvideSignalStore(cfg *config.Config, l *logger.Logger) (drepo.SignalStore, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx, pkgch.WithConfig(cfg.ClickHouse.ClientConfig))
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.InitSchema(ctx, internalrepo.SignalSchema); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	store := internalrepo.NewCHSignalStore(client, l)
	return store, func() { _ = store.Close() }, nil
}

// ProvideKafkaProducer returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	p, err := pkgkafka.NewProducer(prometheus.DefaultRegisterer,
		pkgkafka.WithProducerConfig(cfg.Kafka.Producer),
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return p, func() { _ = p.Close() }, nil
}

// ProvideFusedPublisher returns a nil publisher when there is no producer.
func ProvideFusedPublisher(p *pkgkafka.Producer, cfg *config.Config) drepo.FusedPublisher {
	if p == nil {
		return nil
	}
	return internalrepo.NewKafkaFusedPublisher(p, cfg.Kafka.FusedTopic)
}

// ProvideFanout subscribes the fan-out to the engine. Absent sinks stay nil
// interfaces so the fan-out skips them.
func ProvideFanout(engine *fusion.Engine, pub drepo.FusedPublisher, store drepo.SignalStore, hub *ws.Hub, m drepo.Metrics, l *logger.Logger) *usecase.FusedFanout {
	f := usecase.NewFusedFanout(pub, store, hub, fanoutTimeout, m, l)
	engine.OnFused(f.OnFused)
	return f
}

// ProvideKafkaSignalsHandler feeds the ingest topic into the engine.
func ProvideKafkaSignalsHandler(cfg *config.Config, engine *fusion.Engine, m drepo.Metrics, l *logger.Logger) *usecase.KafkaSignalsHandler {
	return usecase.NewKafkaSignalsHandler(cfg.Kafka.SignalsTopic, engine, m, l)
}

// ProvideKafkaConsumer returns nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	c, err := pkgkafka.NewConsumer(l, prometheus.DefaultRegisterer,
		pkgkafka.WithConsumerConfig(cfg.Kafka.Consumer),
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	c.WithConsumerHook(pkgkafka.TraceHook{})
	return c, nil
}

// ProvideAPIHandler creates the /api routes with per-client throttling.
func ProvideAPIHandler(
	cfg *config.Config,
	l *logger.Logger,
	quotes *provider.QuoteService,
	agg *usecase.Aggregator,
	resolver *entity.Resolver,
	engine *fusion.Engine,
	limiter *ratelimit.Manager,
	fanout *usecase.FusedFanout,
) *api.Handler {
	return api.NewHandler(l, quotes, agg, resolver, engine, limiter, fanout).
		WithClientLimit(ratelimit.NewKeyed(cfg.API.ClientBurst, cfg.API.ClientRPS, nil))
}

// ProvideHTTPServer mounts the API, the websocket stream and /metrics.
func ProvideHTTPServer(cfg *config.Config, l *logger.Logger, h *api.Handler, hub *ws.Hub) *xhttp.Server {
	return xhttp.NewServer(l, []xhttp.Handler{h, hub},
		xhttp.WithConfig(cfg.Server),
		xhttp.WithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer),
	)
}

// ProvideApp assembles the application lifecycle.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSignalsHandler,
	hub *ws.Hub,
	limiter *ratelimit.Manager,
) *server.App {
	app := server.New(cfg, l, srv, hub, limiter)
	if consumer != nil {
		app.WithConsumer(consumer, kh)
	}
	return app
}
