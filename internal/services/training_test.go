package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sitepass/sitepass-backend/internal/adapters/accessctrl"
	"github.com/sitepass/sitepass-backend/internal/adapters/faceverify"
	"github.com/sitepass/sitepass-backend/internal/apperr"
	"github.com/sitepass/sitepass-backend/internal/types"
)

// trainingFixture materializes a one-day ticket with two workers, one area
// and one 300-second video, then exposes a training service whose random
// presence checks are pushed out of the test's way.
type trainingFixture struct {
	env     *testEnv
	faces   *faceverify.MockClient
	svc     TrainingService
	site    *types.Site
	worker1 *types.Worker
	worker2 *types.Worker
	area    *types.WorkArea
	video   *types.TrainingVideo
	ticket  *types.WorkTicket
	daily   *types.DailyTicket
}

func newTrainingFixture(t *testing.T) *trainingFixture {
	t.Helper()
	t.Setenv("TRAINING_CHECK_MIN_SEC", "3600")
	t.Setenv("TRAINING_CHECK_MAX_SEC", "3600")

	env := newTestEnv(t)
	ctx := context.Background()

	site := env.seedSite(t)
	worker1 := env.seedWorker(t, site.ID, true)
	worker2 := env.seedWorker(t, site.ID, true)
	area := env.seedArea(t, site.ID, "grp-train")
	video := env.seedVideo(t, site.ID, 300)

	day := midnightUTC()
	ticket := env.seedTicket(t, site.ID, day, day)
	env.attachWorker(t, ticket, worker1.ID)
	env.attachWorker(t, ticket, worker2.ID)
	env.attachArea(t, ticket, area.ID)
	env.attachVideo(t, ticket, video.ID)

	if _, err := env.materializer.Materialize(ctx, nil, ticket); err != nil {
		t.Fatalf("materialize: %v", err)
	}
	daily, err := env.dailies.GetByTicketAndDate(ctx, nil, ticket.ID, day.Format("2006-01-02"))
	if err != nil || daily == nil {
		t.Fatalf("load daily: %v", err)
	}

	faces := faceverify.NewMockClient(env.log)
	svc := NewTrainingService(env.db, env.sessions, env.dailies, env.dtWorkers,
		env.videos, env.members, env.sites, env.workers, faces, env.access,
		env.notifier, env.log)

	return &trainingFixture{
		env:     env,
		faces:   faces,
		svc:     svc,
		site:    site,
		worker1: worker1,
		worker2: worker2,
		area:    area,
		video:   video,
		ticket:  ticket,
		daily:   daily,
	}
}

// watchThrough replays heartbeats that watch the whole video at real speed,
// fifteen seconds per report.
func (f *trainingFixture) watchThrough(t *testing.T, sessionID uuid.UUID, token string) *SessionView {
	t.Helper()
	var view *SessionView
	var err error
	clientTs := time.Now().Unix()
	for pos := 15; pos <= f.video.DurationSec; pos += 15 {
		clientTs += 15
		view, err = f.svc.Progress(context.Background(), sessionID, token, HeartbeatReport{
			Position:    pos,
			PlayedDelta: 15,
			VideoState:  types.VideoStatePlaying,
			ClientTs:    clientTs,
		})
		if err != nil {
			t.Fatalf("Progress at %d: %v", pos, err)
		}
	}
	return view
}

func TestStartSessionRejectsVideoOutsideTicket(t *testing.T) {
	f := newTrainingFixture(t)
	ctx := context.Background()

	stray := f.env.seedVideo(t, f.site.ID, 120)
	_, err := f.svc.StartSession(ctx, f.worker1.ID, f.daily.ID, stray.ID)
	if err == nil {
		t.Fatal("starting a session on a video the ticket does not mandate must fail")
	}
	if code := apperr.CodeOf(err); code != apperr.CodeVideoNotInTicket {
		t.Fatalf("code = %d, want %d", code, apperr.CodeVideoNotInTicket)
	}

	view, err := f.svc.StartSession(ctx, f.worker1.ID, f.daily.ID, f.video.ID)
	if err != nil {
		t.Fatalf("StartSession on the mandated video: %v", err)
	}
	if view.SessionToken == "" {
		t.Error("session token missing")
	}
	if view.Status != types.SessionStatusInLearning {
		t.Errorf("Status = %s, want %s", view.Status, types.SessionStatusInLearning)
	}
}

func TestWatchingToTheEndCompletesTrainingAndIssuesGrants(t *testing.T) {
	f := newTrainingFixture(t)
	ctx := context.Background()

	start, err := f.svc.StartSession(ctx, f.worker1.ID, f.daily.ID, f.video.ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	view := f.watchThrough(t, start.SessionID, start.SessionToken)
	if view.Status != types.SessionStatusCompleted {
		t.Fatalf("session status = %s, want %s", view.Status, types.SessionStatusCompleted)
	}

	dtw, err := f.env.dtWorkers.Get(ctx, nil, f.daily.ID, f.worker1.ID)
	if err != nil || dtw == nil {
		t.Fatalf("load dtw: %v", err)
	}
	if dtw.TrainingStatus != types.TrainingStatusCompleted {
		t.Errorf("TrainingStatus = %s, want %s", dtw.TrainingStatus, types.TrainingStatusCompleted)
	}
	if !dtw.Authorized {
		t.Error("worker not marked authorized")
	}

	grants, err := f.env.grants.ListByDailyTicketWorker(ctx, nil, f.daily.ID, f.worker1.ID)
	if err != nil {
		t.Fatalf("list grants: %v", err)
	}
	if len(grants) != 1 {
		t.Fatalf("grants = %d, want 1", len(grants))
	}
	g := grants[0]
	if g.Status != types.GrantStatusPendingSync {
		t.Errorf("grant status = %s, want %s", g.Status, types.GrantStatusPendingSync)
	}
	if got := g.ValidFrom.In(time.UTC); got.Hour() != 6 || got.Minute() != 0 {
		t.Errorf("ValidFrom = %v, want 06:00", got)
	}
	if got := g.ValidTo.In(time.UTC); got.Hour() != 20 || got.Minute() != 0 {
		t.Errorf("ValidTo = %v, want 20:00", got)
	}

	// The second worker has not trained, so nothing was issued for them.
	other, err := f.env.grants.ListByDailyTicketWorker(ctx, nil, f.daily.ID, f.worker2.ID)
	if err != nil {
		t.Fatalf("list other grants: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("untrained worker has %d grants, want 0", len(other))
	}

	// The vendor push then moves the grant to SYNCED.
	result, pushErr := f.env.vendor.PushGrant(ctx, accessctrl.GrantRequest{
		GrantID:       g.ID.String(),
		WorkerName:    f.worker1.Name,
		WorkerIDNo:    f.worker1.IDNo,
		FaceID:        f.worker1.FaceID,
		AccessGroupID: f.area.AccessGroupID,
		ValidFrom:     g.ValidFrom,
		ValidTo:       g.ValidTo,
	})
	if pushErr != nil {
		t.Fatalf("PushGrant: %v", pushErr)
	}
	if err := f.env.access.HandlePushResult(ctx, g, result, nil); err != nil {
		t.Fatalf("HandlePushResult: %v", err)
	}
	got, _ := f.env.grants.GetByID(ctx, nil, g.ID)
	if got.Status != types.GrantStatusSynced {
		t.Errorf("grant status after push = %s, want %s", got.Status, types.GrantStatusSynced)
	}
	if got.VendorRef == "" {
		t.Error("vendor ref not recorded")
	}
}

func TestSweepHeartbeatsPausesThenFailsSilentSessions(t *testing.T) {
	f := newTrainingFixture(t)
	ctx := context.Background()

	quiet, err := f.svc.StartSession(ctx, f.worker1.ID, f.daily.ID, f.video.ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	// Silent past the pause threshold but not the fail threshold.
	err = f.env.sessions.UpdateFields(ctx, nil, quiet.SessionID, map[string]interface{}{
		"last_heartbeat_ts": time.Now().Unix() - 120,
	})
	if err != nil {
		t.Fatalf("backdate heartbeat: %v", err)
	}
	paused, failed, err := f.svc.SweepHeartbeats(ctx, 100)
	if err != nil {
		t.Fatalf("SweepHeartbeats: %v", err)
	}
	if paused != 1 || failed != 0 {
		t.Fatalf("paused=%d failed=%d, want 1/0", paused, failed)
	}
	session, err := f.env.sessions.GetByID(ctx, nil, quiet.SessionID)
	if err != nil || session == nil {
		t.Fatalf("reload session: %v", err)
	}
	if session.VideoState != types.VideoStatePaused {
		t.Errorf("VideoState = %s, want %s", session.VideoState, types.VideoStatePaused)
	}

	// Silent past the fail threshold: the session and the worker's day fail.
	err = f.env.sessions.UpdateFields(ctx, nil, quiet.SessionID, map[string]interface{}{
		"last_heartbeat_ts": time.Now().Unix() - 600,
	})
	if err != nil {
		t.Fatalf("backdate heartbeat: %v", err)
	}
	paused, failed, err = f.svc.SweepHeartbeats(ctx, 100)
	if err != nil {
		t.Fatalf("second SweepHeartbeats: %v", err)
	}
	if failed != 1 {
		t.Fatalf("failed = %d, want 1", failed)
	}
	session, _ = f.env.sessions.GetByID(ctx, nil, quiet.SessionID)
	if session.Status != types.SessionStatusFailed {
		t.Errorf("session status = %s, want %s", session.Status, types.SessionStatusFailed)
	}
	if session.FailureReason != types.FailureHeartbeatTimeout {
		t.Errorf("FailureReason = %s, want %s", session.FailureReason, types.FailureHeartbeatTimeout)
	}
	dtw, err := f.env.dtWorkers.Get(ctx, nil, f.daily.ID, f.worker1.ID)
	if err != nil || dtw == nil {
		t.Fatalf("load dtw: %v", err)
	}
	if dtw.TrainingStatus != types.TrainingStatusFailed {
		t.Errorf("TrainingStatus = %s, want %s", dtw.TrainingStatus, types.TrainingStatusFailed)
	}
}
