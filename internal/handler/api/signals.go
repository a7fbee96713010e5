package api

import (
	"FinFuse/internal/domain/models"
	"FinFuse/internal/services/fusion"
	xhttp "FinFuse/pkg/http"
	"FinFuse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AddSignalResponse carries the subject's fused conclusion after the signal
// was stored, if there is one.
type AddSignalResponse struct {
	Accepted bool                `json:"accepted"`
	Fused    *models.FusedSignal `json:"fused,omitempty"`
}

// WeightsResponse is the live weight table with per-type outcomes.
type WeightsResponse struct {
	Table       fusion.WeightTable         `json:"table"`
	Performance []models.PerformanceRecord `json:"performance"`
}

func (h *Handler) AddSignal(c echo.Context) error {
	req := &models.Signal{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !req.Type.Valid() {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("unknown signal type %q", req.Type).WithParam("field", "type"))
	}

	fused, accepted := h.fusion.AddSignal(c.Request().Context(), *req)
	if !accepted {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("signal rejected: malformed or already expired"))
	}
	if fused != nil {
		h.l.Debug("subject fused", logger.String("subject", fused.Subject), logger.Float64("conviction", fused.Conviction))
	}
	return xhttp.CreatedResponse(c, AddSignalResponse{Accepted: true, Fused: fused})
}

func (h *Handler) Opportunities(c echo.Context) error {
	req := &models.OpportunitiesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ops := h.fusion.TopOpportunities(req.Min, req.Direction)
	return xhttp.ListResponse(c, ops, int64(len(ops)))
}

func (h *Handler) Outcome(c echo.Context) error {
	req := &models.OutcomeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rec, err := h.fusion.UpdateSignalPerformance(req.Type, *req.Correct)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
	}
	if h.outcomes != nil {
		h.outcomes.RecordOutcome(c.Request().Context(), rec, *req.Correct)
	}
	return xhttp.SuccessResponse(c, rec)
}

func (h *Handler) Weights(c echo.Context) error {
	return xhttp.SuccessResponse(c, WeightsResponse{Table: h.fusion.Weights(), Performance: h.fusion.Performance()})
}
