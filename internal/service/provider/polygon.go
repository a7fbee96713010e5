package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"FinFuse/internal/domain/models"
	xhttp "FinFuse/pkg/http"

	"github.com/shopspring/decimal"
)

type polygonPrevClose struct {
	Status       string `json:"status"`
	ResultsCount int    `json:"resultsCount"`
	Results      []struct {
		Ticker string          `json:"T"`
		Open   decimal.Decimal `json:"o"`
		High   decimal.Decimal `json:"h"`
		Low    decimal.Decimal `json:"l"`
		Close  decimal.Decimal `json:"c"`
		Volume float64         `json:"v"`
		Time   int64           `json:"t"`
	} `json:"results"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Polygon reads the previous-day aggregate bar. The change is derived from
// the bar's open and close.
type Polygon struct {
	cfg    models.ProviderConfig
	client *xhttp.Client
}

func NewPolygon(cfg models.ProviderConfig, client *xhttp.Client) *Polygon {
	return &Polygon{cfg: cfg, client: client}
}

func (p *Polygon) Name() string { return p.cfg.Name }

func (p *Polygon) FetchQuote(ctx context.Context, symbol string) (*models.NormalizedQuote, error) {
	var raw polygonPrevClose
	endpoint := fmt.Sprintf("%s/v2/aggs/ticker/%s/prev", strings.TrimRight(p.cfg.BaseURL, "/"), url.PathEscape(strings.ToUpper(symbol)))
	err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    endpoint,
		QueryParams: map[string][]string{
			"adjusted": {"true"},
			"apiKey":   {p.cfg.APIKey},
		},
	}, &raw)
	if err != nil {
		return nil, classifyHTTPError(err)
	}
	if msg := raw.Error + raw.Message; raw.Status == "ERROR" || isRateLimitMessage(msg) {
		if isRateLimitMessage(msg) {
			return nil, fmt.Errorf("polygon: %s: %w", msg, ErrRateLimited)
		}
		return nil, fmt.Errorf("polygon: %s", msg)
	}
	if len(raw.Results) == 0 {
		return nil, fmt.Errorf("polygon %s: %w", symbol, ErrNoData)
	}

	bar := raw.Results[0]
	return &models.NormalizedQuote{
		Symbol:        strings.ToUpper(bar.Ticker),
		Price:         bar.Close,
		Change:        bar.Close.Sub(bar.Open),
		ChangePercent: percentChange(bar.Open, bar.Close),
		Open:          bar.Open,
		High:          bar.High,
		Low:           bar.Low,
		Volume:        int64(bar.Volume),
		Timestamp:     unixTime(bar.Time),
		Source:        p.cfg.Name,
	}, nil
}
