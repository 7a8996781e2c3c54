package handlers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sitepass/sitepass-backend/internal/apperr"
	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/services"
	"github.com/sitepass/sitepass-backend/internal/utils"
)

type AccessEventHandler struct {
	log           *logger.Logger
	accessService services.AccessService
	webhookToken  string
}

func NewAccessEventHandler(log *logger.Logger, accessService services.AccessService) *AccessEventHandler {
	l := log.With("handler", "AccessEventHandler")
	return &AccessEventHandler{
		log:           l,
		accessService: accessService,
		webhookToken:  utils.GetEnv("ACCESS_WEBHOOK_TOKEN", "", l),
	}
}

// VendorAuth gates the integration endpoints with the shared vendor token.
func (h *AccessEventHandler) VendorAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("X-Vendor-Token")
		if h.webhookToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.webhookToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    apperr.CodeAuthFailed,
				"message": "invalid vendor token",
			})
			return
		}
		c.Next()
	}
}

type vendorEventRequest struct {
	SiteID           uuid.UUID `json:"site_id" binding:"required"`
	VendorEventID    string    `json:"vendor_event_id"`
	DeviceID         string    `json:"device_id"`
	DeviceName       string    `json:"device_name"`
	WorkerExternalID string    `json:"worker_external_id"`
	FaceID           string    `json:"face_id"`
	IDNo             string    `json:"id_no"`
	AreaID           string    `json:"area_id"`
	EventTime        int64     `json:"event_time" binding:"required"`
	Direction        string    `json:"direction"`
	Result           string    `json:"result" binding:"required"`
	ReasonCode       string    `json:"reason_code"`
	ReasonMessage    string    `json:"reason_message"`
	Confidence       *float64  `json:"confidence"`
}

func (r vendorEventRequest) toIncoming() services.IncomingEvent {
	ev := services.IncomingEvent{
		SiteID:           r.SiteID,
		VendorEventID:    r.VendorEventID,
		DeviceID:         r.DeviceID,
		DeviceName:       r.DeviceName,
		WorkerExternalID: r.WorkerExternalID,
		FaceID:           r.FaceID,
		IDNo:             r.IDNo,
		EventTime:        time.Unix(r.EventTime, 0),
		Direction:        r.Direction,
		Result:           r.Result,
		ReasonCode:       r.ReasonCode,
		ReasonMessage:    r.ReasonMessage,
		Confidence:       r.Confidence,
	}
	if r.AreaID != "" {
		if aid, err := uuid.Parse(r.AreaID); err == nil {
			ev.AreaID = &aid
		}
	}
	return ev
}

// Ingest accepts one vendor event. A replay acknowledges without re-storing.
func (h *AccessEventHandler) Ingest(c *gin.Context) {
	var req vendorEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apperr.Validation("invalid event payload"))
		return
	}
	inserted, err := h.accessService.IngestEvent(c.Request.Context(), req.toIncoming())
	if err != nil {
		RespondError(c, err)
		return
	}
	status := "accepted"
	if !inserted {
		status = "duplicate"
	}
	RespondOK(c, gin.H{"status": status})
}

// IngestBatch accepts a slice of events and reports per-item outcomes by
// index. Bad items do not poison the rest of the batch.
func (h *AccessEventHandler) IngestBatch(c *gin.Context) {
	var req struct {
		Events []vendorEventRequest `json:"events" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apperr.Validation("invalid batch payload"))
		return
	}
	results := make([]gin.H, 0, len(req.Events))
	for i, item := range req.Events {
		inserted, err := h.accessService.IngestEvent(c.Request.Context(), item.toIncoming())
		switch {
		case err != nil:
			results = append(results, gin.H{"index": i, "status": "error", "message": err.Error()})
		case inserted:
			results = append(results, gin.H{"index": i, "status": "accepted"})
		default:
			results = append(results, gin.H{"index": i, "status": "duplicate"})
		}
	}
	RespondOK(c, gin.H{"results": results})
}

// CheckAccess answers the realtime gate question for vendors without local
// authorization caches.
func (h *AccessEventHandler) CheckAccess(c *gin.Context) {
	var req struct {
		WorkerID uuid.UUID `json:"worker_id" binding:"required"`
		AreaID   uuid.UUID `json:"area_id" binding:"required"`
		At       int64     `json:"at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apperr.Validation("invalid check payload"))
		return
	}
	at := time.Now()
	if req.At > 0 {
		at = time.Unix(req.At, 0)
	}
	verdict, err := h.accessService.CheckAccess(c.Request.Context(), req.WorkerID, req.AreaID, at)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, verdict)
}
