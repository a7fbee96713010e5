package provider

import (
	"context"
	"fmt"
	"strings"

	"FinFuse/internal/domain/models"
	xhttp "FinFuse/pkg/http"

	"github.com/shopspring/decimal"
)

type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                     string          `json:"symbol"`
			RegularMarketPrice         decimal.Decimal `json:"regularMarketPrice"`
			RegularMarketChange        decimal.Decimal `json:"regularMarketChange"`
			RegularMarketChangePercent float64         `json:"regularMarketChangePercent"`
			RegularMarketOpen          decimal.Decimal `json:"regularMarketOpen"`
			RegularMarketDayHigh       decimal.Decimal `json:"regularMarketDayHigh"`
			RegularMarketDayLow        decimal.Decimal `json:"regularMarketDayLow"`
			RegularMarketPreviousClose decimal.Decimal `json:"regularMarketPreviousClose"`
			RegularMarketVolume        int64           `json:"regularMarketVolume"`
			RegularMarketTime          int64           `json:"regularMarketTime"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

// Yahoo reads the v7 quote endpoint. Numbers are native JSON and the change
// percent is already in percent units.
type Yahoo struct {
	cfg    models.ProviderConfig
	client *xhttp.Client
}

func NewYahoo(cfg models.ProviderConfig, client *xhttp.Client) *Yahoo {
	return &Yahoo{cfg: cfg, client: client}
}

func (p *Yahoo) Name() string { return p.cfg.Name }

func (p *Yahoo) FetchQuote(ctx context.Context, symbol string) (*models.NormalizedQuote, error) {
	var raw yahooQuoteResponse
	err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         strings.TrimRight(p.cfg.BaseURL, "/") + "/v7/finance/quote",
		QueryParams: map[string][]string{"symbols": {symbol}},
	}, &raw)
	if err != nil {
		return nil, classifyHTTPError(err)
	}
	if e := raw.QuoteResponse.Error; e != nil {
		if isRateLimitMessage(e.Description) {
			return nil, fmt.Errorf("yahoo: %s: %w", e.Description, ErrRateLimited)
		}
		return nil, fmt.Errorf("yahoo: %s: %s", e.Code, e.Description)
	}
	if len(raw.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("yahoo %s: %w", symbol, ErrNoData)
	}

	r := raw.QuoteResponse.Result[0]
	return &models.NormalizedQuote{
		Symbol:        strings.ToUpper(r.Symbol),
		Price:         r.RegularMarketPrice,
		Change:        r.RegularMarketChange,
		ChangePercent: r.RegularMarketChangePercent,
		Open:          r.RegularMarketOpen,
		High:          r.RegularMarketDayHigh,
		Low:           r.RegularMarketDayLow,
		PrevClose:     r.RegularMarketPreviousClose,
		Volume:        r.RegularMarketVolume,
		Timestamp:     unixTime(r.RegularMarketTime),
		Source:        p.cfg.Name,
	}, nil
}
