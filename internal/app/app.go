package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/db"
	"github.com/sitepass/sitepass-backend/internal/jobs"
	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/observability"
)

type Jobs struct {
	GrantSync      *jobs.GrantSyncWorker
	NotifyDispatch *jobs.NotifyDispatchWorker
	Scheduler      *jobs.Scheduler
}

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Clients  Clients
	Services Services
	Jobs     Jobs

	cancel       context.CancelFunc
	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "sitepass-backend",
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	clientset, err := wireClients(cfg, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init clients: %w", err)
	}

	reposet := wireRepos(theDB, log)
	serviceset := wireServices(theDB, log, reposet, clientset)
	handlerset := wireHandlers(log, serviceset)
	mw := wireMiddleware(log, serviceset)
	router := wireRouter(log, handlerset, mw)
	jobset := wireJobs(log, reposet, serviceset, clientset)

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clientset,
		Services:     serviceset,
		Jobs:         jobset,
		otelShutdown: otelShutdown,
	}, nil
}

func wireJobs(log *logger.Logger, r Repos, s Services, c Clients) Jobs {
	log.Info("Wiring jobs...")
	return Jobs{
		GrantSync:      jobs.NewGrantSyncWorker(r.AccessGrant, r.Worker, r.WorkArea, s.Access, c.Vendor, log),
		NotifyDispatch: jobs.NewNotifyDispatchWorker(s.Notification, log),
		Scheduler: jobs.NewScheduler(r.Site, r.WorkTicket, r.DailyTicket, r.DTWorker, r.AccessGrant,
			s.Access, s.Notification, s.Training, s.Reconcile, s.Health, log),
	}
}

// Start launches the background workers. Safe to call once.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Jobs.GrantSync != nil {
		a.Jobs.GrantSync.Start(ctx)
	}
	if a.Jobs.NotifyDispatch != nil {
		a.Jobs.NotifyDispatch.Start(ctx)
	}
	if a.Jobs.Scheduler != nil {
		a.Jobs.Scheduler.Start(ctx)
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Clients.Redis != nil {
		_ = a.Clients.Redis.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
