package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"FinFuse/internal/domain/models"
	xhttp "FinFuse/pkg/http"

	"github.com/shopspring/decimal"
)

type avGlobalQuote struct {
	Quote struct {
		Symbol        string `json:"01. symbol"`
		Open          string `json:"02. open"`
		High          string `json:"03. high"`
		Low           string `json:"04. low"`
		Price         string `json:"05. price"`
		Volume        string `json:"06. volume"`
		LatestDay     string `json:"07. latest trading day"`
		PrevClose     string `json:"08. previous close"`
		Change        string `json:"09. change"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	ErrorMessage string `json:"Error Message"`
}

// AlphaVantage reads GLOBAL_QUOTE. Every field arrives as a string and the
// change percent carries a trailing "%".
type AlphaVantage struct {
	cfg    models.ProviderConfig
	client *xhttp.Client
}

func NewAlphaVantage(cfg models.ProviderConfig, client *xhttp.Client) *AlphaVantage {
	return &AlphaVantage{cfg: cfg, client: client}
}

func (p *AlphaVantage) Name() string { return p.cfg.Name }

func (p *AlphaVantage) FetchQuote(ctx context.Context, symbol string) (*models.NormalizedQuote, error) {
	var raw avGlobalQuote
	err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    strings.TrimRight(p.cfg.BaseURL, "/") + "/query",
		QueryParams: map[string][]string{
			"function": {"GLOBAL_QUOTE"},
			"symbol":   {symbol},
			"apikey":   {p.cfg.APIKey},
		},
	}, &raw)
	if err != nil {
		return nil, classifyHTTPError(err)
	}

	// Alpha Vantage throttles with a 200 and a Note/Information body.
	for _, msg := range []string{raw.Note, raw.Information} {
		if msg != "" {
			if isRateLimitMessage(msg) || raw.Quote.Symbol == "" {
				return nil, fmt.Errorf("alphavantage: %s: %w", msg, ErrRateLimited)
			}
		}
	}
	if raw.ErrorMessage != "" {
		return nil, fmt.Errorf("alphavantage: %s: %w", raw.ErrorMessage, ErrNoData)
	}
	if raw.Quote.Symbol == "" || raw.Quote.Price == "" {
		return nil, fmt.Errorf("alphavantage %s: %w", symbol, ErrNoData)
	}
	return p.normalize(raw)
}

func (p *AlphaVantage) normalize(raw avGlobalQuote) (*models.NormalizedQuote, error) {
	q := raw.Quote
	out := &models.NormalizedQuote{Symbol: strings.ToUpper(q.Symbol), Source: p.cfg.Name}

	var err error
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&out.Price, q.Price},
		{&out.Change, q.Change},
		{&out.Open, q.Open},
		{&out.High, q.High},
		{&out.Low, q.Low},
		{&out.PrevClose, q.PrevClose},
	} {
		if *f.dst, err = parseDecimal(f.src); err != nil {
			return nil, fmt.Errorf("alphavantage: %w", err)
		}
	}
	if out.ChangePercent, err = parsePercent(q.ChangePercent); err != nil {
		return nil, fmt.Errorf("alphavantage: %w", err)
	}
	if out.Volume, err = parseInt(q.Volume); err != nil {
		return nil, fmt.Errorf("alphavantage: %w", err)
	}
	if day, perr := time.Parse("2006-01-02", q.LatestDay); perr == nil {
		out.Timestamp = day.UTC()
	}
	return out, nil
}
