package app

import (
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/services"
)

type Services struct {
	Audit        services.AuditService
	Notification services.NotificationService
	Access       services.AccessService
	Materializer services.MaterializerService
	Ticket       services.TicketService
	Compensator  services.CompensatorService
	Training     services.TrainingService
	WorkerTask   services.WorkerTaskService
	Auth         services.AuthService
	Alert        services.AlertService
	Dashboard    services.DashboardService
	Reconcile    services.ReconcileService
	Health       services.HealthService
}

func wireServices(db *gorm.DB, log *logger.Logger, r Repos, c Clients) Services {
	log.Info("Wiring services...")

	audit := services.NewAuditService(r.AuditLog, log)
	notifier := services.NewNotificationService(c.Redis, r.Notification, r.Worker, r.Site, c.WechatPush, log)
	access := services.NewAccessService(db, r.AccessGrant, r.AccessEvent, r.DailyTicket, r.DTWorker,
		r.TicketMember, r.Worker, r.WorkArea, r.Site, c.Vendor, log)
	materializer := services.NewMaterializerService(db, r.WorkTicket, r.TicketMember, r.DailyTicket,
		r.DTWorker, r.Snapshot, r.Worker, r.WorkArea, r.TrainingVideo, notifier, log)
	ticket := services.NewTicketService(db, r.WorkTicket, r.TicketMember, r.DailyTicket, r.AccessGrant,
		r.Worker, r.WorkArea, r.TrainingVideo, r.Site, materializer, access, audit, log)
	compensator := services.NewCompensatorService(db, r.WorkTicket, r.TicketMember, r.DailyTicket,
		r.DTWorker, r.Snapshot, r.Session, r.AccessGrant, r.Worker, r.WorkArea, r.TrainingVideo,
		r.Site, access, audit, log)
	training := services.NewTrainingService(db, r.Session, r.DailyTicket, r.DTWorker, r.TrainingVideo,
		r.TicketMember, r.Site, r.Worker, c.FaceVerify, access, notifier, log)
	workerTask := services.NewWorkerTaskService(r.Worker, r.Site, r.DailyTicket, r.DTWorker,
		r.Snapshot, r.Session, log)
	auth := services.NewAuthService(db, r.SysUser, r.Worker, c.WechatAuth, c.RealName, c.FaceVerify, audit, log)
	alert := services.NewAlertService(db, r.Alert, audit, log)
	dashboard := services.NewDashboardService(c.Redis, r.Site, r.DailyTicket, r.DTWorker,
		r.AccessGrant, r.AccessEvent, r.Alert, log)
	reconcile := services.NewReconcileService(c.Redis, r.AccessGrant, r.Alert, r.WorkArea, c.Vendor, log)
	health := services.NewHealthService(db, c.Redis, r.Alert, log)

	return Services{
		Audit:        audit,
		Notification: notifier,
		Access:       access,
		Materializer: materializer,
		Ticket:       ticket,
		Compensator:  compensator,
		Training:     training,
		WorkerTask:   workerTask,
		Auth:         auth,
		Alert:        alert,
		Dashboard:    dashboard,
		Reconcile:    reconcile,
		Health:       health,
	}
}
