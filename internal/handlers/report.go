package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sitepass/sitepass-backend/internal/apperr"
	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/middleware"
	"github.com/sitepass/sitepass-backend/internal/repos"
	"github.com/sitepass/sitepass-backend/internal/services"
)

type ReportHandler struct {
	log              *logger.Logger
	dashboardService services.DashboardService
	reconcileService services.ReconcileService
	auditService     services.AuditService
}

func NewReportHandler(
	log *logger.Logger,
	dashboardService services.DashboardService,
	reconcileService services.ReconcileService,
	auditService services.AuditService,
) *ReportHandler {
	return &ReportHandler{
		log:              log.With("handler", "ReportHandler"),
		dashboardService: dashboardService,
		reconcileService: reconcileService,
		auditService:     auditService,
	}
}

// Dashboard returns per-site counters for the requested date, defaulting to
// today on the server clock.
func (h *ReportHandler) Dashboard(c *gin.Context) {
	tctx, ok := middleware.TenantFrom(c)
	if !ok {
		RespondError(c, apperr.ErrUnauthorized)
		return
	}
	date := c.Query("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		RespondError(c, apperr.Validation("invalid date, want YYYY-MM-DD"))
		return
	}
	sites, err := h.dashboardService.Overview(c.Request.Context(), tctx, date)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"date": date, "sites": sites})
}

// ReconcileReport returns the stored drift report for one site and date, or an
// empty body when no reconciliation ran.
func (h *ReportHandler) ReconcileReport(c *gin.Context) {
	tctx, ok := middleware.TenantFrom(c)
	if !ok {
		RespondError(c, apperr.ErrUnauthorized)
		return
	}
	siteID, err := uuid.Parse(c.Param("siteId"))
	if err != nil {
		RespondError(c, apperr.Validation("invalid site id"))
		return
	}
	if !tctx.CanAccessSite(siteID) {
		RespondError(c, apperr.ErrForbidden)
		return
	}
	date := c.Query("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		RespondError(c, apperr.Validation("invalid date, want YYYY-MM-DD"))
		return
	}
	report, err := h.reconcileService.Report(c.Request.Context(), siteID, date)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, report)
}

func (h *ReportHandler) AuditLogs(c *gin.Context) {
	tctx, ok := middleware.TenantFrom(c)
	if !ok {
		RespondError(c, apperr.ErrUnauthorized)
		return
	}
	var query struct {
		OperatorID   string `form:"operator_id"`
		Action       string `form:"action"`
		ResourceType string `form:"resource_type"`
		ResourceID   string `form:"resource_id"`
		DateFrom     string `form:"date_from"`
		DateTo       string `form:"date_to"`
		Limit        int    `form:"limit,default=20"`
		Offset       int    `form:"offset"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondError(c, apperr.Validation("invalid query"))
		return
	}
	filter := repos.AuditLogFilter{
		Action:       query.Action,
		ResourceType: query.ResourceType,
		ResourceID:   query.ResourceID,
		DateFrom:     query.DateFrom,
		DateTo:       query.DateTo,
		Limit:        query.Limit,
		Offset:       query.Offset,
	}
	if query.OperatorID != "" {
		oid, err := uuid.Parse(query.OperatorID)
		if err != nil {
			RespondError(c, apperr.Validation("invalid operator_id"))
			return
		}
		filter.OperatorID = &oid
	}
	if scope := tctx.SiteFilter(); scope != nil {
		filter.SiteIDs = scope
	}
	logs, total, err := h.auditService.List(c.Request.Context(), nil, filter)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"items": logs, "total": total})
}
