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

type TicketHandler struct {
	log           *logger.Logger
	ticketService services.TicketService
	compensator   services.CompensatorService
}

func NewTicketHandler(log *logger.Logger, ticketService services.TicketService, compensator services.CompensatorService) *TicketHandler {
	return &TicketHandler{
		log:           log.With("handler", "TicketHandler"),
		ticketService: ticketService,
		compensator:   compensator,
	}
}

type createTicketRequest struct {
	SiteID                  uuid.UUID   `json:"site_id" binding:"required"`
	ContractorID            uuid.UUID   `json:"contractor_id" binding:"required"`
	Title                   string      `json:"title" binding:"required"`
	Remark                  string      `json:"remark"`
	StartDate               string      `json:"start_date" binding:"required"`
	EndDate                 string      `json:"end_date" binding:"required"`
	DefaultAccessStart      string      `json:"default_access_start"`
	DefaultAccessEnd        string      `json:"default_access_end"`
	DefaultTrainingDeadline string      `json:"default_training_deadline"`
	NotifyOnPublish         *bool       `json:"notify_on_publish"`
	DailyReminderEnabled    *bool       `json:"daily_reminder_enabled"`
	WorkerIDs               []uuid.UUID `json:"worker_ids"`
	AreaIDs                 []uuid.UUID `json:"area_ids"`
	VideoIDs                []uuid.UUID `json:"video_ids"`
}

func (h *TicketHandler) Create(c *gin.Context) {
	tctx, ok := middleware.TenantFrom(c)
	if !ok {
		RespondError(c, apperr.ErrUnauthorized)
		return
	}
	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apperr.Validation("invalid ticket payload"))
		return
	}
	ticket, err := h.ticketService.Create(c.Request.Context(), tctx, services.CreateTicketInput{
		SiteID:                  req.SiteID,
		ContractorID:            req.ContractorID,
		Title:                   req.Title,
		Remark:                  req.Remark,
		StartDate:               req.StartDate,
		EndDate:                 req.EndDate,
		DefaultAccessStart:      req.DefaultAccessStart,
		DefaultAccessEnd:        req.DefaultAccessEnd,
		DefaultTrainingDeadline: req.DefaultTrainingDeadline,
		NotifyOnPublish:         req.NotifyOnPublish,
		DailyReminderEnabled:    req.DailyReminderEnabled,
		WorkerIDs:               req.WorkerIDs,
		AreaIDs:                 req.AreaIDs,
		VideoIDs:                req.VideoIDs,
	}, middleware.RequestIDFrom(c), c.ClientIP())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, ticket)
}

func (h *TicketHandler) Get(c *gin.Context) {
	tctx, ok := middleware.TenantFrom(c)
	if !ok {
		RespondError(c, apperr.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, apperr.Validation("invalid ticket id"))
		return
	}
	detail, err := h.ticketService.Get(c.Request.Context(), tctx, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, detail)
}

func (h *TicketHandler) List(c *gin.Context) {
	tctx, ok := middleware.TenantFrom(c)
	if !ok {
		RespondError(c, apperr.ErrUnauthorized)
		return
	}
	var query struct {
		Status  string `form:"status"`
		Keyword string `form:"keyword"`
		Limit   int    `form:"limit,default=20"`
		Offset  int    `form:"offset"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondError(c, apperr.Validation("invalid query"))
		return
	}
	tickets, total, err := h.ticketService.List(c.Request.Context(), tctx, repos.WorkTicketFilter{
		Status:  query.Status,
		Keyword: query.Keyword,
		Limit:   query.Limit,
		Offset:  query.Offset,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"items": tickets, "total": total})
}

func (h *TicketHandler) Publish(c *gin.Context) {
	tctx, ok := middleware.TenantFrom(c)
	if !ok {
		RespondError(c, apperr.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, apperr.Validation("invalid ticket id"))
		return
	}
	created, err := h.ticketService.Publish(c.Request.Context(), tctx, id,
		middleware.RequestIDFrom(c), c.ClientIP())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"daily_tickets_created": created})
}

func (h *TicketHandler) Cancel(c *gin.Context) {
	tctx, ok := middleware.TenantFrom(c)
	if !ok {
		RespondError(c, apperr.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, apperr.Validation("invalid ticket id"))
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)
	if err := h.ticketService.Cancel(c.Request.Context(), tctx, id, req.Reason,
		middleware.RequestIDFrom(c), c.ClientIP()); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, nil)
}

func (h *TicketHandler) Close(c *gin.Context) {
	tctx, ok := middleware.TenantFrom(c)
	if !ok {
		RespondError(c, apperr.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, apperr.Validation("invalid ticket id"))
		return
	}
	if err := h.ticketService.Close(c.Request.Context(), tctx, id,
		middleware.RequestIDFrom(c), c.ClientIP()); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, nil)
}

type patchTicketRequest struct {
	Remark                  *string     `json:"remark"`
	NotifyOnPublish         *bool       `json:"notify_on_publish"`
	DailyReminderEnabled    *bool       `json:"daily_reminder_enabled"`
	DefaultAccessStart      *string     `json:"default_access_start"`
	DefaultAccessEnd        *string     `json:"default_access_end"`
	DefaultTrainingDeadline *string     `json:"default_training_deadline"`
	AddWorkerIDs            []uuid.UUID `json:"add_worker_ids"`
	RemoveWorkerIDs         []uuid.UUID `json:"remove_worker_ids"`
	AddAreaIDs              []uuid.UUID `json:"add_area_ids"`
	RemoveAreaIDs           []uuid.UUID `json:"remove_area_ids"`
	AddVideoIDs             []uuid.UUID `json:"add_video_ids"`
	RemoveVideoIDs          []uuid.UUID `json:"remove_video_ids"`
}

// Patch applies a compensated edit. Either the whole edit is admitted and
// applied, or nothing changes.
func (h *TicketHandler) Patch(c *gin.Context) {
	tctx, ok := middleware.TenantFrom(c)
	if !ok {
		RespondError(c, apperr.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, apperr.Validation("invalid ticket id"))
		return
	}
	var req patchTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apperr.Validation("invalid edit payload"))
		return
	}
	err = h.compensator.Apply(c.Request.Context(), tctx, id, services.TicketEdit{
		Remark:                  req.Remark,
		NotifyOnPublish:         req.NotifyOnPublish,
		DailyReminderEnabled:    req.DailyReminderEnabled,
		DefaultAccessStart:      req.DefaultAccessStart,
		DefaultAccessEnd:        req.DefaultAccessEnd,
		DefaultTrainingDeadline: req.DefaultTrainingDeadline,
		AddWorkerIDs:            req.AddWorkerIDs,
		RemoveWorkerIDs:         req.RemoveWorkerIDs,
		AddAreaIDs:              req.AddAreaIDs,
		RemoveAreaIDs:           req.RemoveAreaIDs,
		AddVideoIDs:             req.AddVideoIDs,
		RemoveVideoIDs:          req.RemoveVideoIDs,
	}, middleware.RequestIDFrom(c), c.ClientIP())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, nil)
}

func (h *TicketHandler) ListDailyTickets(c *gin.Context) {
	tctx, ok := middleware.TenantFrom(c)
	if !ok {
		RespondError(c, apperr.ErrUnauthorized)
		return
	}
	var query struct {
		TicketID string `form:"ticket_id"`
		Status   string `form:"status"`
		DateFrom string `form:"date_from"`
		DateTo   string `form:"date_to"`
		Limit    int    `form:"limit,default=20"`
		Offset   int    `form:"offset"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondError(c, apperr.Validation("invalid query"))
		return
	}
	// The nested route carries the ticket in the path.
	if tid := c.Param("id"); tid != "" {
		query.TicketID = tid
	}
	filter := repos.DailyTicketFilter{
		Status:   query.Status,
		DateFrom: query.DateFrom,
		DateTo:   query.DateTo,
		Limit:    query.Limit,
		Offset:   query.Offset,
	}
	if query.TicketID != "" {
		tid, err := uuid.Parse(query.TicketID)
		if err != nil {
			RespondError(c, apperr.Validation("invalid ticket_id"))
			return
		}
		filter.TicketID = &tid
	}
	dailies, total, err := h.ticketService.ListDailyTickets(c.Request.Context(), tctx, filter)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"items": dailies, "total": total})
}

// PatchDailyWindow edits one daily ticket's access window in place.
func (h *TicketHandler) PatchDailyWindow(c *gin.Context) {
	tctx, ok := middleware.TenantFrom(c)
	if !ok {
		RespondError(c, apperr.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, apperr.Validation("invalid daily ticket id"))
		return
	}
	var req struct {
		AccessStart      string `json:"access_start"`
		AccessEnd        string `json:"access_end"`
		TrainingDeadline string `json:"training_deadline"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apperr.Validation("invalid window payload"))
		return
	}
	if err := h.compensator.ChangeDailyWindow(c.Request.Context(), tctx, id,
		req.AccessStart, req.AccessEnd, req.TrainingDeadline,
		middleware.RequestIDFrom(c), c.ClientIP()); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, nil)
}
