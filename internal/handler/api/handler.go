package api

import (
	"context"
	"errors"

	"FinFuse/internal/domain/models"
	"FinFuse/internal/service/provider"
	"FinFuse/internal/services/entity"
	"FinFuse/internal/services/fusion"
	xhttp "FinFuse/pkg/http"
	"FinFuse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// QuoteService serves normalized quotes through the provider cascade.
type QuoteService interface {
	GetQuote(ctx context.Context, symbol string) provider.Result[*models.NormalizedQuote]
}

// Collector runs a multi-source collection.
type Collector interface {
	CollectAll(ctx context.Context, subjects []string) *models.AggregateResult
	ProcessIntelligence(res *models.AggregateResult) []models.SubjectIntel
}

// EntityService is the resolver surface exposed over HTTP.
type EntityService interface {
	Register(e models.Entity) (*models.Entity, error)
	Get(id string) (*models.Entity, bool)
	Resolve(text string, rc *models.ResolveContext) (*models.Entity, bool)
	AddRelationship(from, to, kind string) error
	FindRelated(id string, kinds []string, maxDepth int) ([]entity.RelatedEntity, error)
	Merge(keep, drop string) (*models.Entity, error)
}

// FusionService is the signal fusion surface exposed over HTTP.
type FusionService interface {
	AddSignal(ctx context.Context, s models.Signal) (*models.FusedSignal, bool)
	TopOpportunities(minConviction float64, dir models.Direction) []models.FusedSignal
	UpdateSignalPerformance(t models.SignalType, correct bool) (models.PerformanceRecord, error)
	Weights() fusion.WeightTable
	Performance() []models.PerformanceRecord
}

// UsageReporter reports provider quota state.
type UsageReporter interface {
	Status() []models.ProviderUsage
}

// OutcomeRecorder persists signal outcomes.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, rec models.PerformanceRecord, correct bool)
}

// ClientLimiter throttles inbound requests per client key.
type ClientLimiter interface {
	Allow(key string) bool
}

// Handler serves the /api routes.
type Handler struct {
	quotes   QuoteService
	agg      Collector
	entities EntityService
	fusion   FusionService
	usage    UsageReporter
	outcomes OutcomeRecorder
	clients  ClientLimiter
	l        *logger.Logger
}

// NewHandler builds the API handler. outcomes may be nil.
func NewHandler(l *logger.Logger, quotes QuoteService, agg Collector, entities EntityService, fusion FusionService, usage UsageReporter, outcomes OutcomeRecorder) *Handler {
	if l == nil {
		l = logger.Nop()
	}
	return &Handler{
		quotes:   quotes,
		agg:      agg,
		entities: entities,
		fusion:   fusion,
		usage:    usage,
		outcomes: outcomes,
		l:        l.Component("api"),
	}
}

// WithClientLimit throttles every /api route per client IP.
func (h *Handler) WithClientLimit(cl ClientLimiter) *Handler {
	h.clients = cl
	return h
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	if h.clients != nil {
		g.Use(h.throttle)
	}
	g.GET("/quote", h.Quote)
	g.POST("/collect", h.Collect)
	g.GET("/ratelimit", h.RateLimit)

	g.GET("/resolve", h.Resolve)
	g.POST("/entities", h.RegisterEntity)
	g.GET("/entities/:id", h.GetEntity)
	g.POST("/entities/:id/relationships", h.AddRelationship)
	g.GET("/entities/:id/related", h.Related)
	g.POST("/entities/merge", h.Merge)

	g.POST("/signals", h.AddSignal)
	g.POST("/signals/outcome", h.Outcome)
	g.GET("/opportunities", h.Opportunities)
	g.GET("/weights", h.Weights)
}

func (h *Handler) RateLimit(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.usage.Status())
}

func (h *Handler) throttle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !h.clients.Allow(c.RealIP()) {
			h.l.Warn("client rate limited", logger.String("remote", c.RealIP()), logger.String("path", c.Path()))
			return xhttp.AppErrorResponse(c, xhttp.RateLimitedError("too many requests"))
		}
		return next(c)
	}
}

// entityError maps resolver sentinels onto HTTP errors.
func entityError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, entity.ErrAliasConflict):
		return xhttp.ConflictError(err.Error()).WithError(err)
	case errors.Is(err, entity.ErrInvalid):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	default:
		return xhttp.InternalError("entity operation failed").WithError(err)
	}
}
