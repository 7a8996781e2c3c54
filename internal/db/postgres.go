package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/types"
	"github.com/sitepass/sitepass-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "sitepass", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	log.Info("Connecting to Postgres...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		log.Error("Failed to enable uuid-ossp extension", "error", err)
		return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.Site{},
		&types.Contractor{},
		&types.Worker{},
		&types.WorkArea{},
		&types.TrainingVideo{},
		&types.SysUser{},
		&types.WorkTicket{},
		&types.WorkTicketWorker{},
		&types.WorkTicketArea{},
		&types.WorkTicketVideo{},
		&types.DailyTicket{},
		&types.DailyTicketSnapshot{},
		&types.DailyTicketWorker{},
		&types.TrainingSession{},
		&types.AccessGrant{},
		&types.AccessEvent{},
		&types.AuditLog{},
		&types.NotificationLog{},
		&types.Alert{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}

	s.log.Info("Configuring constraints for postgres tables...")
	stmts := []struct {
		name string
		ddl  string
	}{
		{"fk_work_ticket_site_id", `
			ALTER TABLE "work_ticket"
			ADD CONSTRAINT "fk_work_ticket_site_id"
			FOREIGN KEY ("site_id")
			REFERENCES "site"("id")
			ON DELETE RESTRICT
		`},
		{"fk_daily_ticket_ticket_id", `
			ALTER TABLE "daily_ticket"
			ADD CONSTRAINT "fk_daily_ticket_ticket_id"
			FOREIGN KEY ("ticket_id")
			REFERENCES "work_ticket"("id")
			ON DELETE CASCADE
		`},
		{"fk_daily_ticket_worker_daily_ticket_id", `
			ALTER TABLE "daily_ticket_worker"
			ADD CONSTRAINT "fk_daily_ticket_worker_daily_ticket_id"
			FOREIGN KEY ("daily_ticket_id")
			REFERENCES "daily_ticket"("id")
			ON DELETE CASCADE
		`},
		{"fk_training_session_daily_ticket_id", `
			ALTER TABLE "training_session"
			ADD CONSTRAINT "fk_training_session_daily_ticket_id"
			FOREIGN KEY ("daily_ticket_id")
			REFERENCES "daily_ticket"("id")
			ON DELETE CASCADE
		`},
		{"fk_access_grant_daily_ticket_id", `
			ALTER TABLE "access_grant"
			ADD CONSTRAINT "fk_access_grant_daily_ticket_id"
			FOREIGN KEY ("daily_ticket_id")
			REFERENCES "daily_ticket"("id")
			ON DELETE CASCADE
		`},
		{"chk_access_grant_window", `
			ALTER TABLE "access_grant"
			ADD CONSTRAINT "chk_access_grant_window"
			CHECK ("valid_to" > "valid_from")
		`},
	}
	for _, s2 := range stmts {
		if err := s.db.Exec(s2.ddl).Error; err != nil {
			// Re-running migrations against an existing schema is normal.
			s.log.Debug("Constraint already present or failed", "constraint", s2.name, "error", err)
		}
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
