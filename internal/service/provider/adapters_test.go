package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"FinFuse/internal/domain/models"
	xhttp "FinFuse/pkg/http"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonServer(t *testing.T, status int, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func cfgFor(name, baseURL string) models.ProviderConfig {
	return models.ProviderConfig{
		Name:           name,
		BaseURL:        baseURL,
		Capabilities:   []models.Capability{models.CapabilityQuote},
		Burst:          1,
		CallsPerMinute: 60,
		APIKey:         "test-key",
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAlphaVantage_FetchQuote(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{
		"Global Quote": {
			"01. symbol": "IBM",
			"02. open": "160.0000",
			"03. high": "162.5000",
			"04. low": "159.1000",
			"05. price": "161.9500",
			"06. volume": "3512000",
			"07. latest trading day": "2024-01-05",
			"08. previous close": "160.0000",
			"09. change": "1.9500",
			"10. change percent": "1.2188%"
		}
	}`, func(r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "IBM", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
	})

	q, err := NewAlphaVantage(cfgFor("alphavantage", srv.URL), xhttp.NewClient()).FetchQuote(context.Background(), "IBM")
	require.NoError(t, err)
	assert.Equal(t, "IBM", q.Symbol)
	assert.True(t, dec("161.95").Equal(q.Price))
	assert.True(t, dec("1.95").Equal(q.Change))
	assert.InDelta(t, 1.2188, q.ChangePercent, 1e-9)
	assert.Equal(t, int64(3512000), q.Volume)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), q.Timestamp)
	assert.Equal(t, "alphavantage", q.Source)
}

func TestAlphaVantage_NoteIsRateLimit(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute and 500 calls per day."}`, nil)

	_, err := NewAlphaVantage(cfgFor("alphavantage", srv.URL), xhttp.NewClient()).FetchQuote(context.Background(), "IBM")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestAlphaVantage_EmptyQuoteIsNoData(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{"Global Quote": {}}`, nil)

	_, err := NewAlphaVantage(cfgFor("alphavantage", srv.URL), xhttp.NewClient()).FetchQuote(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestYahoo_FetchQuote(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{"quoteResponse":{"result":[{
		"symbol":"AAPL",
		"regularMarketPrice":185.64,
		"regularMarketChange":-0.54,
		"regularMarketChangePercent":-0.29,
		"regularMarketOpen":186.06,
		"regularMarketDayHigh":186.74,
		"regularMarketDayLow":185.19,
		"regularMarketPreviousClose":186.18,
		"regularMarketVolume":62371161,
		"regularMarketTime":1704488400
	}],"error":null}}`, func(r *http.Request) {
		assert.Equal(t, "/v7/finance/quote", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbols"))
	})

	q, err := NewYahoo(cfgFor("yahoo", srv.URL), xhttp.NewClient()).FetchQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, dec("185.64").Equal(q.Price))
	assert.InDelta(t, -0.29, q.ChangePercent, 1e-9)
	assert.False(t, q.Positive())
	assert.Equal(t, int64(62371161), q.Volume)
	assert.Equal(t, time.Unix(1704488400, 0).UTC(), q.Timestamp)
	assert.Equal(t, "yahoo", q.Source)
}

func TestYahoo_EmptyResultIsNoData(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{"quoteResponse":{"result":[],"error":null}}`, nil)

	_, err := NewYahoo(cfgFor("yahoo", srv.URL), xhttp.NewClient()).FetchQuote(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestFinnhub_FetchQuote(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{"c":261.74,"d":2.29,"dp":0.8826,"h":263.31,"l":260.68,"o":261.07,"pc":259.45,"t":1582641000}`,
		func(r *http.Request) {
			assert.Equal(t, "/quote", r.URL.Path)
			assert.Equal(t, "test-key", r.Header.Get("X-Finnhub-Token"))
		})

	q, err := NewFinnhub(cfgFor("finnhub", srv.URL), xhttp.NewClient()).FetchQuote(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", q.Symbol)
	assert.True(t, dec("261.74").Equal(q.Price))
	assert.True(t, dec("259.45").Equal(q.PrevClose))
	assert.InDelta(t, 0.8826, q.ChangePercent, 1e-9)
}

func TestFinnhub_UnknownSymbolIsNoData(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{"c":0,"d":null,"dp":null,"h":0,"l":0,"o":0,"pc":0,"t":0}`, nil)

	_, err := NewFinnhub(cfgFor("finnhub", srv.URL), xhttp.NewClient()).FetchQuote(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestFinnhub_429IsRateLimit(t *testing.T) {
	srv := jsonServer(t, http.StatusTooManyRequests, `{"error":"API limit reached. Please try again later."}`, nil)

	_, err := NewFinnhub(cfgFor("finnhub", srv.URL), xhttp.NewClient()).FetchQuote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestPolygon_FetchQuoteDerivesChange(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{"status":"OK","resultsCount":1,"results":[
		{"T":"MSFT","o":400,"h":410,"l":398,"c":406,"v":21000000,"t":1704488400000}
	]}`, func(r *http.Request) {
		assert.Equal(t, "/v2/aggs/ticker/MSFT/prev", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))
	})

	q, err := NewPolygon(cfgFor("polygon", srv.URL), xhttp.NewClient()).FetchQuote(context.Background(), "msft")
	require.NoError(t, err)
	assert.True(t, dec("406").Equal(q.Price))
	assert.True(t, dec("6").Equal(q.Change))
	assert.InDelta(t, 1.5, q.ChangePercent, 1e-9)
	assert.Equal(t, int64(21000000), q.Volume)
	assert.Equal(t, time.UnixMilli(1704488400000).UTC(), q.Timestamp)
}

func TestNewQuoteProvider_UnknownAdapter(t *testing.T) {
	_, err := NewQuoteProvider(models.ProviderConfig{Name: "bloomberg"}, xhttp.NewClient())
	assert.Error(t, err)

	p, err := NewQuoteProvider(models.ProviderConfig{Name: "primary", Kind: "yahoo"}, xhttp.NewClient())
	require.NoError(t, err)
	assert.Equal(t, "primary", p.Name())
}
