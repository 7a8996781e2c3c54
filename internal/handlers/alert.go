package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sitepass/sitepass-backend/internal/apperr"
	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/middleware"
	"github.com/sitepass/sitepass-backend/internal/repos"
	"github.com/sitepass/sitepass-backend/internal/services"
)

type AlertHandler struct {
	log          *logger.Logger
	alertService services.AlertService
}

func NewAlertHandler(log *logger.Logger, alertService services.AlertService) *AlertHandler {
	return &AlertHandler{
		log:          log.With("handler", "AlertHandler"),
		alertService: alertService,
	}
}

func (h *AlertHandler) List(c *gin.Context) {
	tctx, ok := middleware.TenantFrom(c)
	if !ok {
		RespondError(c, apperr.ErrUnauthorized)
		return
	}
	var query struct {
		Type     string `form:"type"`
		Status   string `form:"status"`
		Priority string `form:"priority"`
		Limit    int    `form:"limit,default=20"`
		Offset   int    `form:"offset"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondError(c, apperr.Validation("invalid query"))
		return
	}
	alerts, total, err := h.alertService.List(c.Request.Context(), tctx, repos.AlertFilter{
		Type:     query.Type,
		Status:   query.Status,
		Priority: query.Priority,
		Limit:    query.Limit,
		Offset:   query.Offset,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"items": alerts, "total": total})
}

func (h *AlertHandler) Acknowledge(c *gin.Context) {
	tctx, ok := middleware.TenantFrom(c)
	if !ok {
		RespondError(c, apperr.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, apperr.Validation("invalid alert id"))
		return
	}
	if err := h.alertService.Acknowledge(c.Request.Context(), tctx, id,
		middleware.RequestIDFrom(c), c.ClientIP()); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, nil)
}

func (h *AlertHandler) Resolve(c *gin.Context) {
	tctx, ok := middleware.TenantFrom(c)
	if !ok {
		RespondError(c, apperr.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, apperr.Validation("invalid alert id"))
		return
	}
	var req struct {
		Note string `json:"note"`
	}
	_ = c.ShouldBindJSON(&req)
	if err := h.alertService.Resolve(c.Request.Context(), tctx, id, req.Note,
		middleware.RequestIDFrom(c), c.ClientIP()); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, nil)
}
