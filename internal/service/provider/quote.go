package provider

import (
	"context"
	"fmt"
	"strings"

	"FinFuse/internal/domain/models"
	drepo "FinFuse/internal/domain/repository"
	"FinFuse/internal/service/ratelimit"
	xhttp "FinFuse/pkg/http"
	"FinFuse/pkg/logger"
	"FinFuse/pkg/metrics"

	"github.com/shopspring/decimal"
)

// NewQuoteProvider builds the adapter named by cfg.Adapter().
func NewQuoteProvider(cfg models.ProviderConfig, client *xhttp.Client) (drepo.QuoteProvider, error) {
	switch strings.ToLower(cfg.Adapter()) {
	case "alphavantage":
		return NewAlphaVantage(cfg, client), nil
	case "yahoo":
		return NewYahoo(cfg, client), nil
	case "finnhub":
		return NewFinnhub(cfg, client), nil
	case "polygon":
		return NewPolygon(cfg, client), nil
	}
	return nil, fmt.Errorf("provider %s: unknown quote adapter %q", cfg.Name, cfg.Adapter())
}

// QuoteService is the consumer-facing quote lookup backed by a provider cascade.
type QuoteService struct {
	cascade *Cascade[*models.NormalizedQuote]
	metrics drepo.Metrics
	l       *logger.Logger
}

// NewQuoteService wires every usable quote-capable provider into a cascade.
// Providers missing a required credential are skipped with a warning; none
// left is an error.
func NewQuoteService(providers []models.ProviderConfig, limiter *ratelimit.Manager, client *xhttp.Client, opts ...CascadeOption) (*QuoteService, error) {
	o := cascadeOptions{metrics: metrics.Nop{}, l: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	l := o.l.Component("quotes")

	var steps []Step[*models.NormalizedQuote]
	for _, cfg := range providers {
		if !cfg.Has(models.CapabilityQuote) {
			continue
		}
		if !cfg.Usable() {
			l.Warn("skipping provider without credential",
				logger.String("provider", cfg.Name),
				logger.String("env", cfg.CredentialEnv()))
			continue
		}
		p, err := NewQuoteProvider(cfg, client)
		if err != nil {
			return nil, err
		}
		steps = append(steps, QuoteStep(p, cfg.Priority))
	}

	cascade, err := NewCascade(models.CapabilityQuote, limiter, steps, opts...)
	if err != nil {
		return nil, err
	}
	l.Info("quote cascade ready", logger.Strings("providers", cascade.Providers()))
	return &QuoteService{cascade: cascade, metrics: o.metrics, l: l}, nil
}

// QuoteStep adapts a QuoteProvider to a cascade step.
func QuoteStep(p drepo.QuoteProvider, priority int) Step[*models.NormalizedQuote] {
	return Step[*models.NormalizedQuote]{Provider: p.Name(), Priority: priority, Call: p.FetchQuote}
}

// GetQuote returns the first normalized quote any provider can serve, or an
// Unavailable result.
func (s *QuoteService) GetQuote(ctx context.Context, symbol string) Result[*models.NormalizedQuote] {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Result[*models.NormalizedQuote]{Unavailable: true}
	}
	res := s.cascade.Fetch(ctx, symbol)
	if !res.Unavailable && res.Value != nil {
		if res.Value.Symbol == "" {
			res.Value.Symbol = symbol
		}
		price, _ := res.Value.Price.Float64()
		s.metrics.RecordLastPrice(symbol, price)
	}
	return res
}

// Price implements the fusion engine's price lookup.
func (s *QuoteService) Price(ctx context.Context, symbol string) (decimal.Decimal, bool) {
	res := s.GetQuote(ctx, symbol)
	if res.Unavailable || res.Value == nil || !res.Value.Price.IsPositive() {
		return decimal.Zero, false
	}
	return res.Value.Price, true
}

// Providers returns the cascade order.
func (s *QuoteService) Providers() []string { return s.cascade.Providers() }
