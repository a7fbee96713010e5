package api

import (
	"FinFuse/internal/domain/models"
	xhttp "FinFuse/pkg/http"
	"FinFuse/pkg/logger"
	"FinFuse/pkg/util"

	"github.com/labstack/echo/v4"
)

func (h *Handler) Resolve(c echo.Context) error {
	req := &models.ResolveRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	var rc *models.ResolveContext
	if req.EntityType != "" || req.Domain != "" {
		rc = &models.ResolveContext{EntityType: req.EntityType, Domain: req.Domain}
	}
	e, ok := h.entities.Resolve(req.Text, rc)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no entity matches %q", req.Text))
	}
	return xhttp.SuccessResponse(c, e)
}

func (h *Handler) RegisterEntity(c echo.Context) error {
	req := &models.Entity{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	e, err := h.entities.Register(*req)
	if err != nil {
		h.l.Warn("register entity", logger.String("name", req.Name), logger.Error(err))
		return xhttp.AppErrorResponse(c, entityError(err))
	}
	return xhttp.CreatedResponse(c, e)
}

func (h *Handler) GetEntity(c echo.Context) error {
	e, ok := h.entities.Get(c.Param("id"))
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("entity %s not found", c.Param("id")))
	}
	return xhttp.SuccessResponse(c, e)
}

func (h *Handler) AddRelationship(c echo.Context) error {
	req := &models.RelationshipRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	id := c.Param("id")
	if err := h.entities.AddRelationship(id, req.TargetID, req.Kind); err != nil {
		return xhttp.AppErrorResponse(c, entityError(err))
	}
	e, _ := h.entities.Get(id)
	return xhttp.SuccessResponse(c, e)
}

func (h *Handler) Related(c echo.Context) error {
	req := &models.RelatedRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rel, err := h.entities.FindRelated(c.Param("id"), util.SplitList(req.Kinds), req.Depth)
	if err != nil {
		return xhttp.AppErrorResponse(c, entityError(err))
	}
	return xhttp.ListResponse(c, rel, int64(len(rel)))
}

func (h *Handler) Merge(c echo.Context) error {
	req := &models.MergeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	e, err := h.entities.Merge(req.Keep, req.Drop)
	if err != nil {
		return xhttp.AppErrorResponse(c, entityError(err))
	}
	return xhttp.SuccessResponse(c, e)
}
