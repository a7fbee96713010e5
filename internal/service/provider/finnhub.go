package provider

import (
	"context"
	"fmt"
	"strings"

	"FinFuse/internal/domain/models"
	xhttp "FinFuse/pkg/http"

	"github.com/shopspring/decimal"
)

type finnhubQuote struct {
	Current       decimal.Decimal `json:"c"`
	Change        decimal.Decimal `json:"d"`
	ChangePercent float64         `json:"dp"`
	High          decimal.Decimal `json:"h"`
	Low           decimal.Decimal `json:"l"`
	Open          decimal.Decimal `json:"o"`
	PrevClose     decimal.Decimal `json:"pc"`
	Time          int64           `json:"t"`
	Error         string          `json:"error"`
}

// Finnhub reads the REST /quote endpoint. Unknown symbols come back as an
// all-zero body rather than an error.
type Finnhub struct {
	cfg    models.ProviderConfig
	client *xhttp.Client
}

func NewFinnhub(cfg models.ProviderConfig, client *xhttp.Client) *Finnhub {
	return &Finnhub{cfg: cfg, client: client}
}

func (p *Finnhub) Name() string { return p.cfg.Name }

func (p *Finnhub) FetchQuote(ctx context.Context, symbol string) (*models.NormalizedQuote, error) {
	var raw finnhubQuote
	err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         strings.TrimRight(p.cfg.BaseURL, "/") + "/quote",
		QueryParams: map[string][]string{"symbol": {symbol}},
		Headers:     map[string]string{"X-Finnhub-Token": p.cfg.APIKey},
	}, &raw)
	if err != nil {
		return nil, classifyHTTPError(err)
	}
	if raw.Error != "" {
		if isRateLimitMessage(raw.Error) {
			return nil, fmt.Errorf("finnhub: %s: %w", raw.Error, ErrRateLimited)
		}
		return nil, fmt.Errorf("finnhub: %s", raw.Error)
	}
	if raw.Current.IsZero() && raw.Time == 0 {
		return nil, fmt.Errorf("finnhub %s: %w", symbol, ErrNoData)
	}

	return &models.NormalizedQuote{
		Symbol:        strings.ToUpper(symbol),
		Price:         raw.Current,
		Change:        raw.Change,
		ChangePercent: raw.ChangePercent,
		Open:          raw.Open,
		High:          raw.High,
		Low:           raw.Low,
		PrevClose:     raw.PrevClose,
		Timestamp:     unixTime(raw.Time),
		Source:        p.cfg.Name,
	}, nil
}
