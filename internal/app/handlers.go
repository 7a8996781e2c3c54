package app

import (
	"github.com/gin-gonic/gin"

	"github.com/sitepass/sitepass-backend/internal/handlers"
	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/middleware"
	"github.com/sitepass/sitepass-backend/internal/server"
)

type Handlers struct {
	Health       *handlers.HealthHandler
	Auth         *handlers.AuthHandler
	Ticket       *handlers.TicketHandler
	Training     *handlers.TrainingHandler
	AccessEvent  *handlers.AccessEventHandler
	Alert        *handlers.AlertHandler
	Report       *handlers.ReportHandler
	Notification *handlers.NotificationHandler
}

type Middleware struct {
	Auth *middleware.AuthMiddleware
}

func wireHandlers(log *logger.Logger, s Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:       handlers.NewHealthHandler(s.Health),
		Auth:         handlers.NewAuthHandler(log, s.Auth),
		Ticket:       handlers.NewTicketHandler(log, s.Ticket, s.Compensator),
		Training:     handlers.NewTrainingHandler(log, s.Training, s.WorkerTask),
		AccessEvent:  handlers.NewAccessEventHandler(log, s.Access),
		Alert:        handlers.NewAlertHandler(log, s.Alert),
		Report:       handlers.NewReportHandler(log, s.Dashboard, s.Reconcile, s.Audit),
		Notification: handlers.NewNotificationHandler(log, s.Notification),
	}
}

func wireMiddleware(log *logger.Logger, s Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: middleware.NewAuthMiddleware(log, s.Auth),
	}
}

func wireRouter(log *logger.Logger, h Handlers, mw Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		Log:                 log,
		AuthMiddleware:      mw.Auth,
		HealthHandler:       h.Health,
		AuthHandler:         h.Auth,
		TicketHandler:       h.Ticket,
		TrainingHandler:     h.Training,
		AccessEventHandler:  h.AccessEvent,
		AlertHandler:        h.Alert,
		ReportHandler:       h.Report,
		NotificationHandler: h.Notification,
	})
}
