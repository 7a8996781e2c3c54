package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sitepass/sitepass-backend/internal/adapters/accessctrl"
	"github.com/sitepass/sitepass-backend/internal/repos"
	"github.com/sitepass/sitepass-backend/internal/types"
)

func TestGrantWindowClampsMidnightCross(t *testing.T) {
	env := newTestEnv(t)
	date := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	dt := &types.DailyTicket{
		Date:        date,
		AccessStart: "06:00:00",
		AccessEnd:   "20:00:00",
	}
	from, to, err := env.access.GrantWindow(dt, time.UTC)
	if err != nil {
		t.Fatalf("GrantWindow: %v", err)
	}
	if from.Hour() != 6 || to.Hour() != 20 {
		t.Errorf("window = %v-%v, want 06:00-20:00", from, to)
	}

	// A night shift whose end lands before its start clamps to end of day.
	dt.AccessStart = "20:00:00"
	dt.AccessEnd = "04:00:00"
	_, to, err = env.access.GrantWindow(dt, time.UTC)
	if err != nil {
		t.Fatalf("GrantWindow night shift: %v", err)
	}
	want := time.Date(2026, 8, 24, 23, 59, 59, 0, time.UTC)
	if !to.Equal(want) {
		t.Errorf("clamped end = %v, want %v", to, want)
	}
}

func TestHandlePushResult(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seed := func() *types.AccessGrant {
		g := &types.AccessGrant{
			ID:            uuid.New(),
			DailyTicketID: uuid.New(),
			WorkerID:      uuid.New(),
			AreaID:        uuid.New(),
			SiteID:        uuid.New(),
			ValidFrom:     time.Now(),
			ValidTo:       time.Now().Add(8 * time.Hour),
			Status:        types.GrantStatusPendingSync,
		}
		if err := env.grants.CreateIgnoreConflicts(ctx, nil, []*types.AccessGrant{g}); err != nil {
			t.Fatalf("seed grant: %v", err)
		}
		return g
	}

	t.Run("success marks synced", func(t *testing.T) {
		g := seed()
		err := env.access.HandlePushResult(ctx, g, &accessctrl.GrantResult{VendorRef: "ref-1"}, nil)
		if err != nil {
			t.Fatalf("HandlePushResult: %v", err)
		}
		got, _ := env.grants.GetByID(ctx, nil, g.ID)
		if got.Status != types.GrantStatusSynced {
			t.Errorf("Status = %s, want %s", got.Status, types.GrantStatusSynced)
		}
		if got.VendorRef != "ref-1" {
			t.Errorf("VendorRef = %s, want ref-1", got.VendorRef)
		}
		if got.SyncAttemptCount != 1 {
			t.Errorf("SyncAttemptCount = %d, want 1", got.SyncAttemptCount)
		}
	})

	t.Run("conflict counts as success", func(t *testing.T) {
		g := seed()
		err := env.access.HandlePushResult(ctx, g, nil, accessctrl.ErrConflict)
		if err != nil {
			t.Fatalf("HandlePushResult: %v", err)
		}
		got, _ := env.grants.GetByID(ctx, nil, g.ID)
		if got.Status != types.GrantStatusSynced {
			t.Errorf("Status = %s, want %s", got.Status, types.GrantStatusSynced)
		}
		// The idempotency key doubles as the fallback reference.
		if got.VendorRef != g.ID.String() {
			t.Errorf("VendorRef = %s, want %s", got.VendorRef, g.ID)
		}
	})

	t.Run("failure records attempt and message", func(t *testing.T) {
		g := seed()
		err := env.access.HandlePushResult(ctx, g, nil, errors.New("vendor unreachable"))
		if err != nil {
			t.Fatalf("HandlePushResult: %v", err)
		}
		got, _ := env.grants.GetByID(ctx, nil, g.ID)
		if got.Status != types.GrantStatusSyncFailed {
			t.Errorf("Status = %s, want %s", got.Status, types.GrantStatusSyncFailed)
		}
		if got.SyncAttemptCount != 1 {
			t.Errorf("SyncAttemptCount = %d, want 1", got.SyncAttemptCount)
		}
		if got.SyncErrorMsg != "vendor unreachable" {
			t.Errorf("SyncErrorMsg = %q", got.SyncErrorMsg)
		}
		if got.LastSyncAt == nil {
			t.Error("LastSyncAt not set")
		}
	})
}

func TestIngestEventDeduplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	site := env.seedSite(t)

	ev := IncomingEvent{
		SiteID:        site.ID,
		VendorEventID: "evt-123",
		DeviceID:      "gate-1",
		EventTime:     time.Now().UTC(),
		Direction:     types.EventDirectionIn,
		Result:        types.EventResultPass,
	}

	inserted, err := env.access.IngestEvent(ctx, ev)
	if err != nil {
		t.Fatalf("first IngestEvent: %v", err)
	}
	if !inserted {
		t.Fatal("first event should insert")
	}

	inserted, err = env.access.IngestEvent(ctx, ev)
	if err != nil {
		t.Fatalf("second IngestEvent: %v", err)
	}
	if inserted {
		t.Fatal("duplicate vendor event id should not insert")
	}
}

func TestIngestEventRequiresDenyReason(t *testing.T) {
	env := newTestEnv(t)
	site := env.seedSite(t)

	_, err := env.access.IngestEvent(context.Background(), IncomingEvent{
		SiteID:    site.ID,
		DeviceID:  "gate-1",
		EventTime: time.Now().UTC(),
		Result:    types.EventResultDeny,
	})
	if err == nil {
		t.Fatal("deny event without a reason code must be rejected")
	}
}

func TestIngestEventResolvesWorkerByFaceID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	site := env.seedSite(t)
	worker := env.seedWorker(t, site.ID, true)

	inserted, err := env.access.IngestEvent(ctx, IncomingEvent{
		SiteID:    site.ID,
		DeviceID:  "gate-2",
		FaceID:    worker.FaceID,
		EventTime: time.Now().UTC(),
		Direction: types.EventDirectionIn,
		Result:    types.EventResultPass,
	})
	if err != nil {
		t.Fatalf("IngestEvent: %v", err)
	}
	if !inserted {
		t.Fatal("expected insert")
	}

	events, _, err := env.events.List(ctx, nil, repos.AccessEventFilter{SiteIDs: []uuid.UUID{site.ID}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].WorkerID == nil || *events[0].WorkerID != worker.ID {
		t.Errorf("WorkerID = %v, want %s", events[0].WorkerID, worker.ID)
	}
}

func TestCheckAccessVerdictLadder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	site := env.seedSite(t)
	area := env.seedArea(t, site.ID, "grp-10")
	worker := env.seedWorker(t, site.ID, false)

	day := midnightUTC()
	at := day.Add(12 * time.Hour)

	check := func(wantResult, wantReason string) {
		t.Helper()
		v, err := env.access.CheckAccess(ctx, worker.ID, area.ID, at)
		if err != nil {
			t.Fatalf("CheckAccess: %v", err)
		}
		if v.Result != wantResult || v.ReasonCode != wantReason {
			t.Fatalf("verdict = %s/%s, want %s/%s", v.Result, v.ReasonCode, wantResult, wantReason)
		}
	}

	check(types.EventResultDeny, types.ReasonIdentityNotBound)

	if err := env.workers.UpdateFields(ctx, nil, worker.ID, map[string]interface{}{"is_bound": true}); err != nil {
		t.Fatalf("bind worker: %v", err)
	}
	check(types.EventResultDeny, types.ReasonNotInTicket)

	ticket := env.seedTicket(t, site.ID, day, day)
	dt := &types.DailyTicket{
		ID:               uuid.New(),
		TicketID:         ticket.ID,
		SiteID:           site.ID,
		Date:             day,
		AccessStart:      "06:00:00",
		AccessEnd:        "20:00:00",
		TrainingDeadline: "09:00:00",
		Status:           types.DailyTicketStatusPublished,
	}
	if _, err := env.dailies.CreateIgnoreConflict(ctx, nil, dt); err != nil {
		t.Fatalf("seed daily: %v", err)
	}
	dtw := &types.DailyTicketWorker{
		ID:             uuid.New(),
		DailyTicketID:  dt.ID,
		WorkerID:       worker.ID,
		SiteID:         site.ID,
		TrainingStatus: types.TrainingStatusNotStarted,
		Status:         "ACTIVE",
	}
	if err := env.dtWorkers.CreateIgnoreConflicts(ctx, nil, []*types.DailyTicketWorker{dtw}); err != nil {
		t.Fatalf("seed dtw: %v", err)
	}
	check(types.EventResultDeny, types.ReasonTrainingIncomplete)

	if err := env.dtWorkers.UpdateFields(ctx, nil, dtw.ID, map[string]interface{}{
		"training_status": types.TrainingStatusCompleted,
	}); err != nil {
		t.Fatalf("complete training: %v", err)
	}
	check(types.EventResultDeny, types.ReasonAreaNotAllowed)

	grant := &types.AccessGrant{
		ID:            uuid.New(),
		DailyTicketID: dt.ID,
		WorkerID:      worker.ID,
		AreaID:        area.ID,
		SiteID:        site.ID,
		ValidFrom:     day.Add(6 * time.Hour),
		ValidTo:       day.Add(20 * time.Hour),
		Status:        types.GrantStatusPendingSync,
	}
	if err := env.grants.CreateIgnoreConflicts(ctx, nil, []*types.AccessGrant{grant}); err != nil {
		t.Fatalf("seed grant: %v", err)
	}
	check(types.EventResultDeny, types.ReasonSyncPending)

	if err := env.grants.UpdateFields(ctx, nil, grant.ID, map[string]interface{}{
		"status": types.GrantStatusSynced,
	}); err != nil {
		t.Fatalf("sync grant: %v", err)
	}
	check(types.EventResultPass, "")

	v, err := env.access.CheckAccess(ctx, worker.ID, area.ID, day.Add(23*time.Hour))
	if err != nil {
		t.Fatalf("CheckAccess outside window: %v", err)
	}
	if v.ReasonCode != types.ReasonOutOfTimeWindow {
		t.Fatalf("ReasonCode = %s, want %s", v.ReasonCode, types.ReasonOutOfTimeWindow)
	}
}
