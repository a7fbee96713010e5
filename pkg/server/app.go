package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FinFuse/internal/domain/models"
	"FinFuse/pkg/config"
	xhttp "FinFuse/pkg/http"
	pkgkafka "FinFuse/pkg/kafka"
	"FinFuse/pkg/logger"
)

// Closer is a component that must be shut down with the app.
type Closer interface {
	Close()
}

// UsageReporter exposes provider quota state for the startup log.
type UsageReporter interface {
	Status() []models.ProviderUsage
}

// App encapsulates the application lifecycle: HTTP, the optional Kafka
// ingest consumer and the websocket hub.
type App struct {
	cfg      *config.Config
	l        *logger.Logger
	http     *xhttp.Server
	hub      Closer
	usage    UsageReporter
	consumer *pkgkafka.Consumer
	kh       pkgkafka.MessageHandler
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *logger.Logger, srv *xhttp.Server, hub Closer, usage UsageReporter) *App {
	return &App{cfg: cfg, l: l.Component("app"), http: srv, hub: hub, usage: usage}
}

// WithConsumer attaches the Kafka consumer and its signal handler.
func (a *App) WithConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) {
	a.consumer = c
	a.kh = h
}

// Run starts every component and blocks until ctx is cancelled or the
// process receives SIGINT/SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, u := range a.usage.Status() {
		a.l.Info("provider ready",
			logger.String("provider", u.Provider),
			logger.Int("calls_per_minute", u.CallsPerMinute),
			logger.Float64("capacity", u.Capacity))
	}
	if missing := a.cfg.MissingCredentials(); len(missing) > 0 {
		a.l.Warn("providers disabled for missing credentials", logger.Strings("env", missing))
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			return err
		}
		a.l.Info("kafka consumer started", logger.String("topic", a.kh.Topic()))
	}

	if err := a.http.Start(); err != nil {
		a.l.Error("http server start error", logger.Error(err))
		return errors.Join(err, a.shutdown())
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops components in reverse start order.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	var errs []error
	a.hub.Close()
	if err := a.http.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", logger.Error(err))
		errs = append(errs, err)
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", logger.Error(err))
			errs = append(errs, err)
		}
	}

	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}
