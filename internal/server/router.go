package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/sitepass/sitepass-backend/internal/handlers"
	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/middleware"
	"github.com/sitepass/sitepass-backend/internal/types"
	"github.com/sitepass/sitepass-backend/internal/utils"
)

type RouterConfig struct {
	Log                 *logger.Logger
	AuthMiddleware      *middleware.AuthMiddleware
	HealthHandler       *handlers.HealthHandler
	AuthHandler         *handlers.AuthHandler
	TicketHandler       *handlers.TicketHandler
	TrainingHandler     *handlers.TrainingHandler
	AccessEventHandler  *handlers.AccessEventHandler
	AlertHandler        *handlers.AlertHandler
	ReportHandler       *handlers.ReportHandler
	NotificationHandler *handlers.NotificationHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(cfg.Log))
	router.Use(otelgin.Middleware("sitepass-backend"))

	origins := utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000", cfg.Log)
	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(origins, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Request-Id"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", cfg.HealthHandler.Liveness)
	router.GET("/readyz", cfg.HealthHandler.Readiness)
	router.POST("/auth/login", cfg.AuthHandler.Login)

	// ===============
	// || Admin     ||
	// ===============
	admin := router.Group("/admin")
	admin.Use(cfg.AuthMiddleware.RequireAuth(types.RoleSysAdmin, types.RoleContractorAdmin))
	{
		admin.GET("/me", cfg.AuthHandler.Me)

		admin.POST("/work-tickets", cfg.TicketHandler.Create)
		admin.GET("/work-tickets", cfg.TicketHandler.List)
		admin.GET("/work-tickets/:id", cfg.TicketHandler.Get)
		admin.PATCH("/work-tickets/:id", cfg.TicketHandler.Patch)
		admin.POST("/work-tickets/:id/publish", cfg.TicketHandler.Publish)
		admin.POST("/work-tickets/:id/cancel", cfg.TicketHandler.Cancel)
		admin.POST("/work-tickets/:id/close", cfg.TicketHandler.Close)
		admin.GET("/work-tickets/:id/daily-tickets", cfg.TicketHandler.ListDailyTickets)

		admin.GET("/daily-tickets", cfg.TicketHandler.ListDailyTickets)
		admin.PATCH("/daily-tickets/:id/window", cfg.TicketHandler.PatchDailyWindow)

		admin.GET("/alerts", cfg.AlertHandler.List)
		admin.POST("/alerts/:id/ack", cfg.AlertHandler.Acknowledge)
		admin.POST("/alerts/:id/resolve", cfg.AlertHandler.Resolve)

		admin.GET("/reports/dashboard", cfg.ReportHandler.Dashboard)
		admin.GET("/reports/reconcile/:siteId", cfg.ReportHandler.ReconcileReport)
		admin.GET("/audit-logs", cfg.ReportHandler.AuditLogs)
	}

	// =================
	// || Mini-program ||
	// =================
	router.POST("/mp/auth/login", cfg.AuthHandler.WechatLogin)
	router.POST("/mp/auth/bind", cfg.AuthHandler.Bind)

	mp := router.Group("/mp")
	mp.Use(cfg.AuthMiddleware.RequireAuth(types.RoleWorker))
	{
		mp.GET("/me", cfg.AuthHandler.Me)
		mp.GET("/tasks/today", cfg.TrainingHandler.TodayTasks)
		mp.POST("/training/sessions/start", cfg.TrainingHandler.StartSession)
		mp.POST("/training/sessions/:id/progress", cfg.TrainingHandler.Progress)
		mp.POST("/training/sessions/:id/verify", cfg.TrainingHandler.Verify)
		mp.POST("/training/sessions/:id/complete", cfg.TrainingHandler.Complete)
		mp.GET("/notifications", cfg.NotificationHandler.List)
		mp.POST("/notifications/:id/read", cfg.NotificationHandler.MarkRead)
	}

	// =================
	// || Integration ||
	// =================
	integration := router.Group("/integration")
	integration.Use(cfg.AccessEventHandler.VendorAuth())
	{
		integration.POST("/access-events/callback", cfg.AccessEventHandler.Ingest)
		integration.POST("/access-events/callback/batch", cfg.AccessEventHandler.IngestBatch)
		integration.POST("/check-access", cfg.AccessEventHandler.CheckAccess)
	}

	return router
}
