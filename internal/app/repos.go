package app

import (
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/repos"
)

type Repos struct {
	Site          repos.SiteRepo
	Contractor    repos.ContractorRepo
	Worker        repos.WorkerRepo
	WorkArea      repos.WorkAreaRepo
	TrainingVideo repos.TrainingVideoRepo
	WorkTicket    repos.WorkTicketRepo
	TicketMember  repos.WorkTicketMemberRepo
	DailyTicket   repos.DailyTicketRepo
	DTWorker      repos.DailyTicketWorkerRepo
	Snapshot      repos.DailyTicketSnapshotRepo
	Session       repos.TrainingSessionRepo
	AccessGrant   repos.AccessGrantRepo
	AccessEvent   repos.AccessEventRepo
	AuditLog      repos.AuditLogRepo
	Notification  repos.NotificationLogRepo
	Alert         repos.AlertRepo
	SysUser       repos.SysUserRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Site:          repos.NewSiteRepo(db, log),
		Contractor:    repos.NewContractorRepo(db, log),
		Worker:        repos.NewWorkerRepo(db, log),
		WorkArea:      repos.NewWorkAreaRepo(db, log),
		TrainingVideo: repos.NewTrainingVideoRepo(db, log),
		WorkTicket:    repos.NewWorkTicketRepo(db, log),
		TicketMember:  repos.NewWorkTicketMemberRepo(db, log),
		DailyTicket:   repos.NewDailyTicketRepo(db, log),
		DTWorker:      repos.NewDailyTicketWorkerRepo(db, log),
		Snapshot:      repos.NewDailyTicketSnapshotRepo(db, log),
		Session:       repos.NewTrainingSessionRepo(db, log),
		AccessGrant:   repos.NewAccessGrantRepo(db, log),
		AccessEvent:   repos.NewAccessEventRepo(db, log),
		AuditLog:      repos.NewAuditLogRepo(db, log),
		Notification:  repos.NewNotificationLogRepo(db, log),
		Alert:         repos.NewAlertRepo(db, log),
		SysUser:       repos.NewSysUserRepo(db, log),
	}
}
