package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sitepass/sitepass-backend/internal/apperr"
	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/middleware"
	"github.com/sitepass/sitepass-backend/internal/services"
)

type TrainingHandler struct {
	log             *logger.Logger
	trainingService services.TrainingService
	taskService     services.WorkerTaskService
}

func NewTrainingHandler(log *logger.Logger, trainingService services.TrainingService, taskService services.WorkerTaskService) *TrainingHandler {
	return &TrainingHandler{
		log:             log.With("handler", "TrainingHandler"),
		trainingService: trainingService,
		taskService:     taskService,
	}
}

// TodayTasks returns the worker's daily tickets and per-video progress.
func (h *TrainingHandler) TodayTasks(c *gin.Context) {
	tctx, ok := middleware.TenantFrom(c)
	if !ok {
		RespondError(c, apperr.ErrUnauthorized)
		return
	}
	tasks, err := h.taskService.TodayTasks(c.Request.Context(), tctx.UserID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"tasks": tasks})
}

func (h *TrainingHandler) StartSession(c *gin.Context) {
	tctx, ok := middleware.TenantFrom(c)
	if !ok {
		RespondError(c, apperr.ErrUnauthorized)
		return
	}
	var req struct {
		DailyTicketID uuid.UUID `json:"daily_ticket_id" binding:"required"`
		VideoID       uuid.UUID `json:"video_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apperr.Validation("invalid session payload"))
		return
	}
	view, err := h.trainingService.StartSession(c.Request.Context(), tctx.UserID, req.DailyTicketID, req.VideoID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, view)
}

func (h *TrainingHandler) Progress(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, apperr.Validation("invalid session id"))
		return
	}
	var req struct {
		SessionToken string `json:"session_token" binding:"required"`
		Position     int    `json:"position"`
		PlayedDelta  int    `json:"played_delta"`
		VideoState   string `json:"video_state"`
		ClientTs     int64  `json:"client_ts"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apperr.Validation("invalid progress payload"))
		return
	}
	view, err := h.trainingService.Progress(c.Request.Context(), sessionID, req.SessionToken, services.HeartbeatReport{
		Position:    req.Position,
		PlayedDelta: req.PlayedDelta,
		VideoState:  req.VideoState,
		ClientTs:    req.ClientTs,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, view)
}

func (h *TrainingHandler) Verify(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, apperr.Validation("invalid session id"))
		return
	}
	var req struct {
		SessionToken string `json:"session_token" binding:"required"`
		PhotoBase64  string `json:"photo_base64" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apperr.Validation("invalid verify payload"))
		return
	}
	view, err := h.trainingService.Verify(c.Request.Context(), sessionID, req.SessionToken, req.PhotoBase64)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, view)
}

func (h *TrainingHandler) Complete(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, apperr.Validation("invalid session id"))
		return
	}
	var req struct {
		SessionToken string `json:"session_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apperr.Validation("invalid completion payload"))
		return
	}
	view, err := h.trainingService.Complete(c.Request.Context(), sessionID, req.SessionToken)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, view)
}
