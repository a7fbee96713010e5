package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"FinFuse/internal/domain/models"
	"FinFuse/internal/service/provider"
	"FinFuse/internal/services/entity"
	"FinFuse/internal/services/fusion"
	"FinFuse/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuotes struct {
	res provider.Result[*models.NormalizedQuote]
	got string
}

func (f *fakeQuotes) GetQuote(_ context.Context, symbol string) provider.Result[*models.NormalizedQuote] {
	f.got = symbol
	return f.res
}

type fakeCollector struct {
	subjects []string
}

func (f *fakeCollector) CollectAll(_ context.Context, subjects []string) *models.AggregateResult {
	f.subjects = subjects
	return &models.AggregateResult{
		Subjects: subjects,
		Results: map[string]models.SourceResult{
			"quotes": {Source: "quotes", Indications: []models.Indication{{Subject: subjects[0], Positive: true, Value: 1.2}}},
		},
	}
}

func (f *fakeCollector) ProcessIntelligence(res *models.AggregateResult) []models.SubjectIntel {
	return []models.SubjectIntel{{Subject: res.Subjects[0], Positive: 1, Total: 1, Score: 1, Tier: models.TierHigh}}
}

type fakeUsage []models.ProviderUsage

func (f fakeUsage) Status() []models.ProviderUsage { return f }

type recordedOutcome struct {
	rec     models.PerformanceRecord
	correct bool
}

type fakeOutcomes struct {
	mu  sync.Mutex
	got []recordedOutcome
}

func (f *fakeOutcomes) RecordOutcome(_ context.Context, rec models.PerformanceRecord, correct bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, recordedOutcome{rec: rec, correct: correct})
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testAPI struct {
	e        *echo.Echo
	quotes   *fakeQuotes
	agg      *fakeCollector
	outcomes *fakeOutcomes
	resolver *entity.Resolver
	engine   *fusion.Engine
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	api := &testAPI{
		e:        echo.New(),
		quotes:   &fakeQuotes{},
		agg:      &fakeCollector{},
		outcomes: &fakeOutcomes{},
		resolver: entity.NewResolver(),
		engine:   fusion.NewEngine(fusion.DefaultConfig()),
	}
	usage := fakeUsage{{Provider: "yahoo", AvailableTokens: 19, Capacity: 20, CallsPerMinute: 2000}}
	h := NewHandler(logger.Nop(), api.quotes, api.agg, api.resolver, api.engine, usage, api.outcomes)
	h.RegisterRoutes(api.e)
	return api
}

func (a *testAPI) do(t *testing.T, method, target, body string) (envelope, *httptest.ResponseRecorder) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env, rec
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func TestQuote(t *testing.T) {
	api := newTestAPI(t)
	api.quotes.res = provider.Result[*models.NormalizedQuote]{
		Value:  &models.NormalizedQuote{Symbol: "AAPL", Price: decimal.RequireFromString("190.25"), Source: "yahoo"},
		Source: "yahoo",
		Attempts: []provider.Attempt{
			{Provider: "alphavantage", Outcome: provider.OutcomeThrottled},
			{Provider: "yahoo", Outcome: provider.OutcomeOK},
		},
	}

	env, rec := api.do(t, http.MethodGet, "/api/quote?symbol=aapl", "")
	assert.Equal(t, http.StatusOK, env.Status)
	assert.Equal(t, "aapl", api.quotes.got)
	assert.Equal(t, "private, max-age=15", rec.Header().Get(echo.HeaderCacheControl))

	got := decode[QuoteResponse](t, env.Data)
	assert.Equal(t, "yahoo", got.Source)
	require.Len(t, got.Attempts, 2)
	assert.Equal(t, provider.OutcomeThrottled, got.Attempts[0].Outcome)
	assert.True(t, got.Quote.Price.Equal(decimal.RequireFromString("190.25")))
}

func TestQuote_Errors(t *testing.T) {
	api := newTestAPI(t)

	env, _ := api.do(t, http.MethodGet, "/api/quote", "")
	assert.Equal(t, http.StatusBadRequest, env.Status)

	api.quotes.res = provider.Result[*models.NormalizedQuote]{
		Unavailable: true,
		Attempts:    []provider.Attempt{{Provider: "yahoo", Outcome: provider.OutcomeTimeout}},
	}
	env, _ = api.do(t, http.MethodGet, "/api/quote?symbol=MSFT", "")
	assert.Equal(t, http.StatusServiceUnavailable, env.Status)
	assert.Contains(t, string(env.Data), "ERR_UNAVAILABLE")
}

func TestCollect(t *testing.T) {
	api := newTestAPI(t)

	env, _ := api.do(t, http.MethodPost, "/api/collect", `{"subjects":["AAPL","MSFT"]}`)
	require.Equal(t, http.StatusOK, env.Status)
	assert.Equal(t, []string{"AAPL", "MSFT"}, api.agg.subjects)

	got := decode[CollectResponse](t, env.Data)
	require.Len(t, got.Intel, 1)
	assert.Equal(t, models.TierHigh, got.Intel[0].Tier)
	assert.Contains(t, got.Result.Results, "quotes")

	env, _ = api.do(t, http.MethodPost, "/api/collect", `{"subjects":[]}`)
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestRateLimit(t *testing.T) {
	api := newTestAPI(t)
	env, _ := api.do(t, http.MethodGet, "/api/ratelimit", "")
	got := decode[[]models.ProviderUsage](t, env.Data)
	require.Len(t, got, 1)
	assert.Equal(t, "yahoo", got[0].Provider)
	assert.Equal(t, 19.0, got[0].AvailableTokens)
}

func TestEntities(t *testing.T) {
	api := newTestAPI(t)

	env, _ := api.do(t, http.MethodPost, "/api/entities", `{"id":"apple","type":"company","name":"Apple","tickers":["aapl"]}`)
	require.Equal(t, http.StatusCreated, env.Status, string(env.Data))
	apple := decode[models.Entity](t, env.Data)
	assert.Equal(t, []string{"AAPL"}, apple.Tickers)

	env, _ = api.do(t, http.MethodPost, "/api/entities", `{"id":"tim","type":"person","name":"Tim Cook"}`)
	require.Equal(t, http.StatusCreated, env.Status)

	t.Run("conflicting ticker", func(t *testing.T) {
		env, _ := api.do(t, http.MethodPost, "/api/entities", `{"type":"company","name":"Apple Records","tickers":["AAPL"]}`)
		assert.Equal(t, http.StatusConflict, env.Status)
	})

	t.Run("invalid type", func(t *testing.T) {
		env, _ := api.do(t, http.MethodPost, "/api/entities", `{"type":"fund","name":"Vanguard"}`)
		assert.Equal(t, http.StatusBadRequest, env.Status)
	})

	t.Run("resolve by ticker", func(t *testing.T) {
		env, _ := api.do(t, http.MethodGet, "/api/resolve?text=AAPL&domain=financial", "")
		require.Equal(t, http.StatusOK, env.Status)
		assert.Equal(t, "apple", decode[models.Entity](t, env.Data).ID)
	})

	t.Run("resolve miss", func(t *testing.T) {
		env, _ := api.do(t, http.MethodGet, "/api/resolve?text=zzzz", "")
		assert.Equal(t, http.StatusNotFound, env.Status)
	})

	t.Run("resolve rejects unknown entity type", func(t *testing.T) {
		env, _ := api.do(t, http.MethodGet, "/api/resolve?text=AAPL&entity_type=fund", "")
		assert.Equal(t, http.StatusBadRequest, env.Status)
	})

	t.Run("relationship and inference", func(t *testing.T) {
		env, _ := api.do(t, http.MethodPost, "/api/entities/tim/relationships", `{"target_id":"apple","kind":"ceo"}`)
		require.Equal(t, http.StatusOK, env.Status, string(env.Data))

		q := url.Values{"text": {"CEO of Apple"}}
		env, _ = api.do(t, http.MethodGet, "/api/resolve?"+q.Encode(), "")
		require.Equal(t, http.StatusOK, env.Status)
		assert.Equal(t, "tim", decode[models.Entity](t, env.Data).ID)

		env, _ = api.do(t, http.MethodGet, "/api/entities/tim/related?depth=1", "")
		require.Equal(t, http.StatusOK, env.Status)
		assert.Contains(t, string(env.Data), `"total":1`)

		env, _ = api.do(t, http.MethodPost, "/api/entities/tim/relationships", `{"target_id":"nobody","kind":"ceo"}`)
		assert.Equal(t, http.StatusNotFound, env.Status)
	})

	t.Run("merge", func(t *testing.T) {
		env, _ := api.do(t, http.MethodPost, "/api/entities", `{"id":"apple-computer","type":"company","name":"Apple Computer"}`)
		require.Equal(t, http.StatusCreated, env.Status)

		env, _ = api.do(t, http.MethodPost, "/api/entities/merge", `{"keep":"apple","drop":"apple-computer"}`)
		require.Equal(t, http.StatusOK, env.Status, string(env.Data))
		assert.Contains(t, decode[models.Entity](t, env.Data).Aliases, "Apple Computer")

		env, _ = api.do(t, http.MethodGet, "/api/entities/apple-computer", "")
		assert.Equal(t, http.StatusNotFound, env.Status)

		env, _ = api.do(t, http.MethodPost, "/api/entities/merge", `{"keep":"apple","drop":"apple"}`)
		assert.Equal(t, http.StatusBadRequest, env.Status)
	})
}

func signalBody(source string, typ models.SignalType, dir models.Direction, strength float64) string {
	b, _ := json.Marshal(models.Signal{Source: source, Type: typ, Subject: "nvda", Direction: dir, Strength: strength})
	return string(b)
}

func TestSignalsAndOpportunities(t *testing.T) {
	api := newTestAPI(t)

	env, _ := api.do(t, http.MethodPost, "/api/signals", signalBody("flow", models.SignalOptionsFlow, models.Bullish, 0.8))
	require.Equal(t, http.StatusCreated, env.Status, string(env.Data))
	first := decode[AddSignalResponse](t, env.Data)
	assert.True(t, first.Accepted)
	require.NotNil(t, first.Fused)
	assert.Equal(t, 1, first.Fused.SignalCount)

	env, _ = api.do(t, http.MethodPost, "/api/signals", signalBody("filings", models.SignalInsiderBuying, models.Bullish, 0.9))
	require.Equal(t, http.StatusCreated, env.Status)
	second := decode[AddSignalResponse](t, env.Data)
	require.NotNil(t, second.Fused)
	assert.Equal(t, "NVDA", second.Fused.Subject)
	assert.Equal(t, models.Bullish, second.Fused.Direction)
	assert.Equal(t, 2, second.Fused.SignalCount)

	env, _ = api.do(t, http.MethodGet, "/api/opportunities?min=0.1", "")
	require.Equal(t, http.StatusOK, env.Status)
	assert.Contains(t, string(env.Data), `"total":1`)

	env, _ = api.do(t, http.MethodGet, "/api/opportunities?direction=bearish", "")
	assert.Contains(t, string(env.Data), `"total":0`)

	env, _ = api.do(t, http.MethodGet, "/api/opportunities?min=2", "")
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestAddSignal_Rejected(t *testing.T) {
	api := newTestAPI(t)

	env, _ := api.do(t, http.MethodPost, "/api/signals", signalBody("x", "astrology", models.Bullish, 0.5))
	assert.Equal(t, http.StatusBadRequest, env.Status)

	env, _ = api.do(t, http.MethodPost, "/api/signals", signalBody("x", models.SignalDarkPool, models.Bullish, 1.5))
	assert.Equal(t, http.StatusBadRequest, env.Status)

	expired, _ := json.Marshal(models.Signal{
		Source: "x", Type: models.SignalDarkPool, Subject: "NVDA", Direction: models.Bullish, Strength: 0.5,
		CreatedAt: time.Now().Add(-2 * time.Hour), ExpiresAt: time.Now().Add(-time.Hour),
	})
	env, _ = api.do(t, http.MethodPost, "/api/signals", string(expired))
	assert.Equal(t, http.StatusBadRequest, env.Status)
	assert.Empty(t, api.engine.Subjects())
}

func TestOutcomeAndWeights(t *testing.T) {
	api := newTestAPI(t)

	env, _ := api.do(t, http.MethodPost, "/api/signals/outcome", `{"type":"insider_buying","correct":true}`)
	require.Equal(t, http.StatusOK, env.Status, string(env.Data))
	rec := decode[models.PerformanceRecord](t, env.Data)
	assert.Equal(t, 1, rec.Total)
	assert.Equal(t, 1, rec.Correct)
	require.Len(t, api.outcomes.got, 1)
	assert.True(t, api.outcomes.got[0].correct)

	env, _ = api.do(t, http.MethodPost, "/api/signals/outcome", `{"type":"insider_buying"}`)
	assert.Equal(t, http.StatusBadRequest, env.Status)

	env, _ = api.do(t, http.MethodPost, "/api/signals/outcome", `{"type":"astrology","correct":false}`)
	assert.Equal(t, http.StatusBadRequest, env.Status)
	assert.Len(t, api.outcomes.got, 1)

	env, _ = api.do(t, http.MethodGet, "/api/weights", "")
	got := decode[WeightsResponse](t, env.Data)
	assert.Equal(t, 1, got.Table.Version)
	assert.InDelta(t, 0.9, got.Table.Weights[models.SignalInsiderBuying], 1e-9)
	require.Len(t, got.Performance, 1)
	assert.Equal(t, models.SignalInsiderBuying, got.Performance[0].Type)
}

type denyAfter struct {
	mu   sync.Mutex
	left int
}

func (d *denyAfter) Allow(string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.left == 0 {
		return false
	}
	d.left--
	return true
}

func TestClientThrottle(t *testing.T) {
	e := echo.New()
	h := NewHandler(logger.Nop(), &fakeQuotes{}, &fakeCollector{}, entity.NewResolver(), fusion.NewEngine(fusion.DefaultConfig()), fakeUsage{}, nil).
		WithClientLimit(&denyAfter{left: 1})
	h.RegisterRoutes(e)
	api := &testAPI{e: e}

	env, _ := api.do(t, http.MethodGet, "/api/ratelimit", "")
	assert.Equal(t, http.StatusOK, env.Status)
	env, _ = api.do(t, http.MethodGet, "/api/ratelimit", "")
	assert.Equal(t, http.StatusTooManyRequests, env.Status)
}
