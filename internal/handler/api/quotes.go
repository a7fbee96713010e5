package api

import (
	"FinFuse/internal/domain/models"
	"FinFuse/internal/service/provider"
	xhttp "FinFuse/pkg/http"
	"FinFuse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// QuoteResponse carries the quote and which provider served it.
type QuoteResponse struct {
	Quote    *models.NormalizedQuote `json:"quote"`
	Source   string                  `json:"source"`
	Attempts []provider.Attempt      `json:"attempts"`
}

// CollectResponse is a collection run plus its per-subject tally.
type CollectResponse struct {
	Result *models.AggregateResult `json:"result"`
	Intel  []models.SubjectIntel   `json:"intel"`
}

func (h *Handler) Quote(c echo.Context) error {
	req := &models.QuoteRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res := h.quotes.GetQuote(c.Request().Context(), req.Symbol)
	if res.Unavailable {
		h.l.Warn("quote unavailable", logger.String("symbol", req.Symbol), logger.Int("attempts", len(res.Attempts)))
		return xhttp.AppErrorResponse(c,
			xhttp.UnavailableError("symbol", "no provider could serve the quote").WithParam("attempts", res.Attempts))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, QuoteResponse{Quote: res.Value, Source: res.Source, Attempts: res.Attempts})
}

func (h *Handler) Collect(c echo.Context) error {
	req := &models.CollectRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res := h.agg.CollectAll(c.Request().Context(), req.Subjects)
	return xhttp.SuccessResponse(c, CollectResponse{Result: res, Intel: h.agg.ProcessIntelligence(res)})
}
