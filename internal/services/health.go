package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/repos"
	"github.com/sitepass/sitepass-backend/internal/types"
)

// ComponentHealth is the probe result for one dependency.
type ComponentHealth struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthReport aggregates all probes. Healthy means every component passed.
type HealthReport struct {
	Healthy    bool              `json:"healthy"`
	CheckedAt  time.Time         `json:"checked_at"`
	Components []ComponentHealth `json:"components"`
}

// HealthService probes the database, Redis and the notification queue depth.
// The periodic sweep raises a SERVICE_UNHEALTHY alert per failing component.
type HealthService interface {
	Check(ctx context.Context) *HealthReport
	Sweep(ctx context.Context) (*HealthReport, error)
}

type healthService struct {
	log    *logger.Logger
	db     *gorm.DB
	rdb    *goredis.Client
	alerts repos.AlertRepo
}

func NewHealthService(db *gorm.DB, rdb *goredis.Client, alerts repos.AlertRepo, baseLog *logger.Logger) HealthService {
	return &healthService{
		log:    baseLog.With("service", "HealthService"),
		db:     db,
		rdb:    rdb,
		alerts: alerts,
	}
}

func (s *healthService) Check(ctx context.Context) *HealthReport {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	report := &HealthReport{Healthy: true, CheckedAt: time.Now()}
	var mu sync.Mutex
	record := func(c ComponentHealth) {
		mu.Lock()
		defer mu.Unlock()
		report.Components = append(report.Components, c)
		if !c.Healthy {
			report.Healthy = false
		}
	}

	g, gctx := errgroup.WithContext(probeCtx)
	g.Go(func() error {
		record(s.probe("postgres", func() error {
			sqlDB, err := s.db.WithContext(gctx).DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(gctx)
		}))
		return nil
	})
	g.Go(func() error {
		record(s.probe("redis", func() error {
			return s.rdb.Ping(gctx).Err()
		}))
		return nil
	})
	g.Go(func() error {
		record(s.probe("notify_queue", func() error {
			depth, err := s.rdb.ZCard(gctx, notifyQueueKey).Result()
			if err != nil {
				return err
			}
			if depth > 10000 {
				return fmt.Errorf("queue depth %d exceeds threshold", depth)
			}
			return nil
		}))
		return nil
	})
	_ = g.Wait()
	return report
}

func (s *healthService) probe(name string, fn func() error) ComponentHealth {
	start := time.Now()
	err := fn()
	c := ComponentHealth{
		Name:      name,
		Healthy:   err == nil,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		c.Error = err.Error()
	}
	return c
}

// Sweep runs the probes and raises one alert per failing component. The dedup
// key keeps a flapping dependency from producing an alert every ten minutes.
func (s *healthService) Sweep(ctx context.Context) (*HealthReport, error) {
	report := s.Check(ctx)
	for _, c := range report.Components {
		if c.Healthy {
			continue
		}
		s.log.Error("component unhealthy", "component", c.Name, "error", c.Error)
		details, _ := json.Marshal(c)
		_, err := s.alerts.CreateUnlessOpen(ctx, nil, &types.Alert{
			ID:       uuid.New(),
			Type:     types.AlertTypeServiceUnhealthy,
			Priority: types.AlertPriorityHigh,
			Status:   types.AlertStatusUnacknowledged,
			Title:    fmt.Sprintf("dependency unhealthy: %s", c.Name),
			Details:  datatypes.JSON(details),
			DedupKey: "service_unhealthy:" + c.Name,
		})
		if err != nil {
			return report, err
		}
	}
	return report, nil
}
