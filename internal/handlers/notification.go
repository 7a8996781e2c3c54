package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sitepass/sitepass-backend/internal/apperr"
	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/middleware"
	"github.com/sitepass/sitepass-backend/internal/services"
)

type NotificationHandler struct {
	log      *logger.Logger
	notifier services.NotificationService
}

func NewNotificationHandler(log *logger.Logger, notifier services.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		log:      log.With("handler", "NotificationHandler"),
		notifier: notifier,
	}
}

// List returns the calling worker's notification history, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	tctx, ok := middleware.TenantFrom(c)
	if !ok {
		RespondError(c, apperr.ErrUnauthorized)
		return
	}
	var query struct {
		Limit  int `form:"limit,default=20"`
		Offset int `form:"offset"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondError(c, apperr.Validation("invalid query"))
		return
	}
	items, total, err := h.notifier.ListForWorker(c.Request.Context(), tctx.UserID, query.Limit, query.Offset)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"items": items, "total": total})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	tctx, ok := middleware.TenantFrom(c)
	if !ok {
		RespondError(c, apperr.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, apperr.Validation("invalid notification id"))
		return
	}
	updated, err := h.notifier.MarkRead(c.Request.Context(), id, tctx.UserID)
	if err != nil {
		RespondError(c, err)
		return
	}
	if !updated {
		RespondError(c, apperr.ErrNotFound)
		return
	}
	RespondOK(c, nil)
}
