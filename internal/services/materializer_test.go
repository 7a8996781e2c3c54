package services

import (
	"context"
	"testing"

	"github.com/sitepass/sitepass-backend/internal/types"
)

func TestMaterializeCreatesDailyTicketsWithSnapshots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	site := env.seedSite(t)
	w1 := env.seedWorker(t, site.ID, true)
	w2 := env.seedWorker(t, site.ID, true)
	area := env.seedArea(t, site.ID, "grp-01")
	video := env.seedVideo(t, site.ID, 600)

	start := midnightUTC()
	ticket := env.seedTicket(t, site.ID, start, start.AddDate(0, 0, 2))
	env.attachWorker(t, ticket, w1.ID)
	env.attachWorker(t, ticket, w2.ID)
	env.attachArea(t, ticket, area.ID)
	env.attachVideo(t, ticket, video.ID)

	created, err := env.materializer.Materialize(ctx, nil, ticket)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if created != 3 {
		t.Fatalf("created = %d, want 3", created)
	}

	dt, err := env.dailies.GetByTicketAndDate(ctx, nil, ticket.ID, start.Format("2006-01-02"))
	if err != nil {
		t.Fatalf("GetByTicketAndDate: %v", err)
	}
	if dt == nil {
		t.Fatal("expected a daily ticket for the first day")
	}
	if dt.Status != types.DailyTicketStatusPublished {
		t.Errorf("Status = %s, want %s", dt.Status, types.DailyTicketStatusPublished)
	}
	if dt.AccessStart != ticket.DefaultAccessStart || dt.AccessEnd != ticket.DefaultAccessEnd {
		t.Errorf("window = %s-%s, want %s-%s", dt.AccessStart, dt.AccessEnd,
			ticket.DefaultAccessStart, ticket.DefaultAccessEnd)
	}

	workerSnaps, err := env.snapshots.ListByDailyTicket(ctx, nil, dt.ID, types.SnapshotKindWorker)
	if err != nil {
		t.Fatalf("ListByDailyTicket worker: %v", err)
	}
	if len(workerSnaps) != 2 {
		t.Errorf("worker snapshots = %d, want 2", len(workerSnaps))
	}

	areaSnaps, err := env.snapshots.ListByDailyTicket(ctx, nil, dt.ID, types.SnapshotKindArea)
	if err != nil {
		t.Fatalf("ListByDailyTicket area: %v", err)
	}
	if len(areaSnaps) != 1 {
		t.Fatalf("area snapshots = %d, want 1", len(areaSnaps))
	}
	areaMeta, err := areaSnaps[0].AreaMeta()
	if err != nil {
		t.Fatalf("AreaMeta: %v", err)
	}
	if areaMeta.AccessGroupID != "grp-01" {
		t.Errorf("AccessGroupID = %s, want grp-01", areaMeta.AccessGroupID)
	}

	videoSnaps, err := env.snapshots.ListByDailyTicket(ctx, nil, dt.ID, types.SnapshotKindVideo)
	if err != nil {
		t.Fatalf("ListByDailyTicket video: %v", err)
	}
	if len(videoSnaps) != 1 {
		t.Fatalf("video snapshots = %d, want 1", len(videoSnaps))
	}
	videoMeta, err := videoSnaps[0].VideoMeta()
	if err != nil {
		t.Fatalf("VideoMeta: %v", err)
	}
	if videoMeta.DurationSec != 600 {
		t.Errorf("DurationSec = %d, want 600", videoMeta.DurationSec)
	}
	if videoMeta.RequiredPercent != 0.95 {
		t.Errorf("RequiredPercent = %v, want 0.95", videoMeta.RequiredPercent)
	}

	dtws, err := env.dtWorkers.ListByDailyTicket(ctx, nil, dt.ID)
	if err != nil {
		t.Fatalf("ListByDailyTicket workers: %v", err)
	}
	if len(dtws) != 2 {
		t.Fatalf("daily ticket workers = %d, want 2", len(dtws))
	}
	for _, dtw := range dtws {
		if dtw.TotalVideoCount != 1 {
			t.Errorf("TotalVideoCount = %d, want 1", dtw.TotalVideoCount)
		}
		if dtw.TrainingStatus != types.TrainingStatusNotStarted {
			t.Errorf("TrainingStatus = %s, want %s", dtw.TrainingStatus, types.TrainingStatusNotStarted)
		}
	}
}

func TestMaterializeNotifiesWorkersOnPublish(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	site := env.seedSite(t)
	w1 := env.seedWorker(t, site.ID, true)
	w2 := env.seedWorker(t, site.ID, true)
	area := env.seedArea(t, site.ID, "grp-03")

	start := midnightUTC()
	ticket := env.seedTicket(t, site.ID, start, start)
	ticket.NotifyOnPublish = true
	env.attachWorker(t, ticket, w1.ID)
	env.attachWorker(t, ticket, w2.ID)
	env.attachArea(t, ticket, area.ID)

	if _, err := env.materializer.Materialize(ctx, nil, ticket); err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	if len(env.notifier.enqueued) != 2 {
		t.Fatalf("notifications = %d, want one per worker", len(env.notifier.enqueued))
	}
	notified := map[string]bool{}
	for _, n := range env.notifier.enqueued {
		if n.Kind != types.NotifyKindTrainingTask {
			t.Errorf("Kind = %s, want %s", n.Kind, types.NotifyKindTrainingTask)
		}
		if n.WorkerID == nil {
			t.Fatal("notification without a worker")
		}
		notified[n.WorkerID.String()] = true
	}
	if !notified[w1.ID.String()] || !notified[w2.ID.String()] {
		t.Errorf("notified = %v, want both workers", notified)
	}
}

func TestMaterializeIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	site := env.seedSite(t)
	w := env.seedWorker(t, site.ID, true)
	area := env.seedArea(t, site.ID, "grp-02")

	start := midnightUTC()
	ticket := env.seedTicket(t, site.ID, start, start)
	env.attachWorker(t, ticket, w.ID)
	env.attachArea(t, ticket, area.ID)

	created, err := env.materializer.Materialize(ctx, nil, ticket)
	if err != nil {
		t.Fatalf("first Materialize: %v", err)
	}
	if created != 1 {
		t.Fatalf("first run created = %d, want 1", created)
	}

	created, err = env.materializer.Materialize(ctx, nil, ticket)
	if err != nil {
		t.Fatalf("second Materialize: %v", err)
	}
	if created != 0 {
		t.Fatalf("second run created = %d, want 0", created)
	}

	dt, err := env.dailies.GetByTicketAndDate(ctx, nil, ticket.ID, start.Format("2006-01-02"))
	if err != nil {
		t.Fatalf("GetByTicketAndDate: %v", err)
	}
	snaps, err := env.snapshots.ListByDailyTicket(ctx, nil, dt.ID, types.SnapshotKindWorker)
	if err != nil {
		t.Fatalf("ListByDailyTicket: %v", err)
	}
	if len(snaps) != 1 {
		t.Errorf("worker snapshots after re-run = %d, want 1", len(snaps))
	}
}
