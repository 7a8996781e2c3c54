package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/repos"
	"github.com/sitepass/sitepass-backend/internal/services"
	"github.com/sitepass/sitepass-backend/internal/testutil"
	"github.com/sitepass/sitepass-backend/internal/types"
)

type stubReconcile struct {
	l1Sites []uuid.UUID
	l2Sites []uuid.UUID
}

func (s *stubReconcile) RunL1(ctx context.Context, site *types.Site, now time.Time) (int, error) {
	s.l1Sites = append(s.l1Sites, site.ID)
	return 0, nil
}

func (s *stubReconcile) RunL2(ctx context.Context, site *types.Site, now time.Time) (int, error) {
	s.l2Sites = append(s.l2Sites, site.ID)
	return 0, nil
}

func (s *stubReconcile) Report(ctx context.Context, siteID uuid.UUID, date string) (*services.DriftReport, error) {
	return nil, nil
}

type stubTraining struct {
	sweeps int
}

func (s *stubTraining) StartSession(ctx context.Context, workerID, dailyTicketID, videoID uuid.UUID) (*services.SessionView, error) {
	return nil, nil
}

func (s *stubTraining) Progress(ctx context.Context, sessionID uuid.UUID, token string, report services.HeartbeatReport) (*services.SessionView, error) {
	return nil, nil
}

func (s *stubTraining) Verify(ctx context.Context, sessionID uuid.UUID, token string, photoBase64 string) (*services.SessionView, error) {
	return nil, nil
}

func (s *stubTraining) Complete(ctx context.Context, sessionID uuid.UUID, token string) (*services.SessionView, error) {
	return nil, nil
}

func (s *stubTraining) SweepHeartbeats(ctx context.Context, limit int) (int, int, error) {
	s.sweeps++
	return 0, 0, nil
}

type stubHealth struct {
	sweeps int
}

func (s *stubHealth) Check(ctx context.Context) *services.HealthReport {
	return nil
}

func (s *stubHealth) Sweep(ctx context.Context) (*services.HealthReport, error) {
	s.sweeps++
	return nil, nil
}

type stubNotifier struct {
	enqueued []services.Notification
}

func (s *stubNotifier) Enqueue(ctx context.Context, tx *gorm.DB, n services.Notification) (bool, error) {
	s.enqueued = append(s.enqueued, n)
	return true, nil
}

func (s *stubNotifier) DispatchBatch(ctx context.Context, max int) (int, error) {
	return 0, nil
}

func (s *stubNotifier) ListForWorker(ctx context.Context, workerID uuid.UUID, limit, offset int) ([]*types.NotificationLog, int64, error) {
	return nil, 0, nil
}

func (s *stubNotifier) MarkRead(ctx context.Context, id, workerID uuid.UUID) (bool, error) {
	return false, nil
}

// TestTickRunsReconciliationOnSiteLocalClock drives one tick at 01:00 UTC.
// Shanghai is at 09:00 local, past both nightly windows; a UTC site is at
// 01:00, before them. Only the Shanghai site reconciles, and only once.
func TestTickRunsReconciliationOnSiteLocalClock(t *testing.T) {
	db := testutil.OpenTestDB(t)
	log := testutil.NewTestLogger(t)
	ctx := context.Background()

	sites := repos.NewSiteRepo(db, log)
	tickets := repos.NewWorkTicketRepo(db, log)
	dailies := repos.NewDailyTicketRepo(db, log)
	dtWorkers := repos.NewDailyTicketWorkerRepo(db, log)
	grants := repos.NewAccessGrantRepo(db, log)

	east := &types.Site{
		ID:                      uuid.New(),
		Name:                    "East Yard",
		Timezone:                "Asia/Shanghai",
		DefaultAccessStart:      "06:00:00",
		DefaultAccessEnd:        "20:00:00",
		DefaultTrainingDeadline: "09:00:00",
		IsActive:                true,
	}
	west := &types.Site{
		ID:                      uuid.New(),
		Name:                    "West Yard",
		Timezone:                "UTC",
		DefaultAccessStart:      "06:00:00",
		DefaultAccessEnd:        "20:00:00",
		DefaultTrainingDeadline: "09:00:00",
		IsActive:                true,
	}
	if _, err := sites.Create(ctx, nil, []*types.Site{east, west}); err != nil {
		t.Fatalf("seed sites: %v", err)
	}

	reconcile := &stubReconcile{}
	training := &stubTraining{}
	health := &stubHealth{}
	notifier := &stubNotifier{}
	sched := NewScheduler(sites, tickets, dailies, dtWorkers, grants,
		nil, notifier, training, reconcile, health, log)

	now := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	sched.tick(ctx, now)

	if len(reconcile.l1Sites) != 1 || reconcile.l1Sites[0] != east.ID {
		t.Fatalf("L1 ran for %v, want only %s", reconcile.l1Sites, east.ID)
	}
	if len(reconcile.l2Sites) != 1 || reconcile.l2Sites[0] != east.ID {
		t.Fatalf("L2 ran for %v, want only %s", reconcile.l2Sites, east.ID)
	}
	if health.sweeps != 1 {
		t.Errorf("health sweeps = %d, want 1", health.sweeps)
	}
	if training.sweeps != 1 {
		t.Errorf("heartbeat sweeps = %d, want 1", training.sweeps)
	}

	// The firing is keyed per site and date, so a second tick is a no-op.
	sched.tick(ctx, now.Add(time.Minute))
	if len(reconcile.l1Sites) != 1 || len(reconcile.l2Sites) != 1 {
		t.Fatalf("reconciliation re-fired: l1=%v l2=%v", reconcile.l1Sites, reconcile.l2Sites)
	}

	// Once the UTC site's clock passes the windows it reconciles too.
	sched.tick(ctx, now.Add(3*time.Hour))
	foundWest := false
	for _, id := range reconcile.l1Sites {
		if id == west.ID {
			foundWest = true
		}
	}
	if !foundWest {
		t.Fatal("UTC site never reconciled after 03:00 local")
	}
}
