package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sitepass/sitepass-backend/internal/apperr"
	"github.com/sitepass/sitepass-backend/internal/types"
)

// compensatorFixture materializes a one-day ticket for today with one worker,
// two areas and one video, and issues the worker's grants.
type compensatorFixture struct {
	env    *testEnv
	site   *types.Site
	worker *types.Worker
	area1  *types.WorkArea
	area2  *types.WorkArea
	video  *types.TrainingVideo
	ticket *types.WorkTicket
	daily  *types.DailyTicket
	dtw    *types.DailyTicketWorker
}

func newCompensatorFixture(t *testing.T, endOffsetDays int) *compensatorFixture {
	t.Helper()
	env := newTestEnv(t)
	ctx := context.Background()

	site := env.seedSite(t)
	worker := env.seedWorker(t, site.ID, true)
	area1 := env.seedArea(t, site.ID, "grp-a")
	area2 := env.seedArea(t, site.ID, "grp-b")
	video := env.seedVideo(t, site.ID, 600)

	day := midnightUTC()
	ticket := env.seedTicket(t, site.ID, day, day.AddDate(0, 0, endOffsetDays))
	env.attachWorker(t, ticket, worker.ID)
	env.attachArea(t, ticket, area1.ID)
	env.attachArea(t, ticket, area2.ID)
	env.attachVideo(t, ticket, video.ID)

	if _, err := env.materializer.Materialize(ctx, nil, ticket); err != nil {
		t.Fatalf("materialize: %v", err)
	}
	daily, err := env.dailies.GetByTicketAndDate(ctx, nil, ticket.ID, day.Format("2006-01-02"))
	if err != nil || daily == nil {
		t.Fatalf("load daily: %v", err)
	}
	if _, err := env.access.IssueGrantsForWorker(ctx, nil, daily, worker.ID, site); err != nil {
		t.Fatalf("issue grants: %v", err)
	}
	dtw, err := env.dtWorkers.Get(ctx, nil, daily.ID, worker.ID)
	if err != nil || dtw == nil {
		t.Fatalf("load dtw: %v", err)
	}

	return &compensatorFixture{
		env:    env,
		site:   site,
		worker: worker,
		area1:  area1,
		area2:  area2,
		video:  video,
		ticket: ticket,
		daily:  daily,
		dtw:    dtw,
	}
}

func TestApplyRejectsAreaRemovalWithLiveGrantToday(t *testing.T) {
	f := newCompensatorFixture(t, 0)
	ctx := context.Background()

	// The worker's grants are PENDING_SYNC, so the area already has a live
	// authorization today and cannot be pulled out from under it.
	err := f.env.compensator.Apply(ctx, sysAdminCtx(), f.ticket.ID, TicketEdit{
		RemoveAreaIDs: []uuid.UUID{f.area2.ID},
	}, "req-1", "127.0.0.1")
	if err == nil {
		t.Fatal("removing an area with a live grant today must be rejected")
	}
	if code := apperr.CodeOf(err); code != apperr.CodeTicketChangeForbidden {
		t.Fatalf("code = %d, want %d", code, apperr.CodeTicketChangeForbidden)
	}

	areas, err := f.env.members.ListActiveAreas(ctx, nil, f.ticket.ID)
	if err != nil {
		t.Fatalf("ListActiveAreas: %v", err)
	}
	if len(areas) != 2 {
		t.Fatalf("active areas = %d, want both intact", len(areas))
	}
}

func TestApplyRemoveAreaRevokesItsGrants(t *testing.T) {
	f := newCompensatorFixture(t, 0)
	ctx := context.Background()

	// Once the area's grant fell out of the live set the removal is admitted,
	// and the fan-out still revokes the failed grant.
	grants, err := f.env.grants.ListByDailyTicketWorker(ctx, nil, f.daily.ID, f.worker.ID)
	if err != nil {
		t.Fatalf("load grants: %v", err)
	}
	for _, g := range grants {
		if g.AreaID == f.area2.ID {
			err = f.env.grants.UpdateFields(ctx, nil, g.ID, map[string]interface{}{
				"status": types.GrantStatusSyncFailed,
			})
			if err != nil {
				t.Fatalf("mark sync failed: %v", err)
			}
		}
	}

	err = f.env.compensator.Apply(ctx, sysAdminCtx(), f.ticket.ID, TicketEdit{
		RemoveAreaIDs: []uuid.UUID{f.area2.ID},
	}, "req-1", "127.0.0.1")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	areas, err := f.env.members.ListActiveAreas(ctx, nil, f.ticket.ID)
	if err != nil {
		t.Fatalf("ListActiveAreas: %v", err)
	}
	if len(areas) != 1 || areas[0].AreaID != f.area1.ID {
		t.Fatalf("active areas = %d, want only the surviving one", len(areas))
	}

	grants, err = f.env.grants.ListByDailyTicketWorker(ctx, nil, f.daily.ID, f.worker.ID)
	if err != nil {
		t.Fatalf("ListByDailyTicketWorker: %v", err)
	}
	for _, g := range grants {
		switch g.AreaID {
		case f.area2.ID:
			if g.Status != types.GrantStatusRevoked {
				t.Errorf("removed area grant status = %s, want %s", g.Status, types.GrantStatusRevoked)
			}
			if g.RevokeReason != types.RevokeReasonAreaRemoved {
				t.Errorf("RevokeReason = %s, want %s", g.RevokeReason, types.RevokeReasonAreaRemoved)
			}
		case f.area1.ID:
			if g.Status != types.GrantStatusPendingSync {
				t.Errorf("surviving area grant status = %s, want %s", g.Status, types.GrantStatusPendingSync)
			}
		}
	}
}

func TestApplyRejectsWorkerRemovalAfterCompletion(t *testing.T) {
	f := newCompensatorFixture(t, 0)
	ctx := context.Background()

	err := f.env.dtWorkers.UpdateFields(ctx, nil, f.dtw.ID, map[string]interface{}{
		"training_status": types.TrainingStatusCompleted,
	})
	if err != nil {
		t.Fatalf("complete training: %v", err)
	}

	err = f.env.compensator.Apply(ctx, sysAdminCtx(), f.ticket.ID, TicketEdit{
		RemoveWorkerIDs: []uuid.UUID{f.worker.ID},
	}, "req-2", "127.0.0.1")
	if err == nil {
		t.Fatal("removing a worker who completed today must be rejected")
	}
	if code := apperr.CodeOf(err); code != apperr.CodeTicketChangeForbidden {
		t.Fatalf("code = %d, want %d", code, apperr.CodeTicketChangeForbidden)
	}

	// A rejected edit has no partial effect.
	members, err := f.env.members.ListActiveWorkers(ctx, nil, f.ticket.ID)
	if err != nil {
		t.Fatalf("ListActiveWorkers: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("active workers = %d, want 1", len(members))
	}
}

func TestApplyRejectsVideoRemovalAlways(t *testing.T) {
	f := newCompensatorFixture(t, 0)

	err := f.env.compensator.Apply(context.Background(), sysAdminCtx(), f.ticket.ID, TicketEdit{
		RemoveVideoIDs: []uuid.UUID{f.video.ID},
	}, "req-3", "127.0.0.1")
	if err == nil {
		t.Fatal("video removal must always be rejected")
	}
	if code := apperr.CodeOf(err); code != apperr.CodeTicketChangeForbidden {
		t.Fatalf("code = %d, want %d", code, apperr.CodeTicketChangeForbidden)
	}
}

func TestApplyRejectsAdditionsAfterTrainingStarted(t *testing.T) {
	f := newCompensatorFixture(t, 0)
	ctx := context.Background()

	err := f.env.dtWorkers.UpdateFields(ctx, nil, f.dtw.ID, map[string]interface{}{
		"training_status": types.TrainingStatusInLearning,
	})
	if err != nil {
		t.Fatalf("start training: %v", err)
	}

	extraArea := f.env.seedArea(t, f.site.ID, "grp-c")
	err = f.env.compensator.Apply(ctx, sysAdminCtx(), f.ticket.ID, TicketEdit{
		AddAreaIDs: []uuid.UUID{extraArea.ID},
	}, "req-4", "127.0.0.1")
	if code := apperr.CodeOf(err); code != apperr.CodeTicketChangeForbidden {
		t.Fatalf("add area code = %d, want %d", code, apperr.CodeTicketChangeForbidden)
	}

	extraVideo := f.env.seedVideo(t, f.site.ID, 300)
	err = f.env.compensator.Apply(ctx, sysAdminCtx(), f.ticket.ID, TicketEdit{
		AddVideoIDs: []uuid.UUID{extraVideo.ID},
	}, "req-5", "127.0.0.1")
	if code := apperr.CodeOf(err); code != apperr.CodeTicketChangeForbidden {
		t.Fatalf("add video code = %d, want %d", code, apperr.CodeTicketChangeForbidden)
	}
}

func TestApplyWindowChangeSparesTodayRetimesFuture(t *testing.T) {
	f := newCompensatorFixture(t, 1)
	ctx := context.Background()

	tomorrow := midnightUTC().AddDate(0, 0, 1)
	futureDaily, err := f.env.dailies.GetByTicketAndDate(ctx, nil, f.ticket.ID, tomorrow.Format("2006-01-02"))
	if err != nil || futureDaily == nil {
		t.Fatalf("load future daily: %v", err)
	}
	if _, err := f.env.access.IssueGrantsForWorker(ctx, nil, futureDaily, f.worker.ID, f.site); err != nil {
		t.Fatalf("issue future grants: %v", err)
	}
	futureGrants, err := f.env.grants.ListByDailyTicketWorker(ctx, nil, futureDaily.ID, f.worker.ID)
	if err != nil || len(futureGrants) == 0 {
		t.Fatalf("load future grants: %v", err)
	}
	err = f.env.grants.UpdateFields(ctx, nil, futureGrants[0].ID, map[string]interface{}{
		"status": types.GrantStatusSynced,
	})
	if err != nil {
		t.Fatalf("mark synced: %v", err)
	}

	newStart := "07:30:00"
	err = f.env.compensator.Apply(ctx, sysAdminCtx(), f.ticket.ID, TicketEdit{
		DefaultAccessStart: &newStart,
	}, "req-6", "127.0.0.1")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	today, err := f.env.dailies.GetByID(ctx, nil, f.daily.ID)
	if err != nil {
		t.Fatalf("reload today: %v", err)
	}
	if today.AccessStart != "06:00:00" {
		t.Errorf("today's AccessStart = %s, want untouched 06:00:00", today.AccessStart)
	}

	future, err := f.env.dailies.GetByID(ctx, nil, futureDaily.ID)
	if err != nil {
		t.Fatalf("reload future: %v", err)
	}
	if future.AccessStart != newStart {
		t.Errorf("future AccessStart = %s, want %s", future.AccessStart, newStart)
	}

	g, err := f.env.grants.GetByID(ctx, nil, futureGrants[0].ID)
	if err != nil {
		t.Fatalf("reload grant: %v", err)
	}
	if g.Status != types.GrantStatusPendingSync {
		t.Errorf("retimed grant status = %s, want %s", g.Status, types.GrantStatusPendingSync)
	}
	if got := g.ValidFrom.In(time.UTC); got.Hour() != 7 || got.Minute() != 30 {
		t.Errorf("retimed ValidFrom = %v, want 07:30", got)
	}
}
