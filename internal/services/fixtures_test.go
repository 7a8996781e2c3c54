package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/adapters/accessctrl"
	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/repos"
	"github.com/sitepass/sitepass-backend/internal/tenant"
	"github.com/sitepass/sitepass-backend/internal/testutil"
	"github.com/sitepass/sitepass-backend/internal/types"
)

// testEnv wires the repositories and the services under test against an
// in-memory database and the mock vendor.
type testEnv struct {
	db     *gorm.DB
	log    *logger.Logger
	vendor *accessctrl.MockClient

	sites     repos.SiteRepo
	workers   repos.WorkerRepo
	areas     repos.WorkAreaRepo
	videos    repos.TrainingVideoRepo
	tickets   repos.WorkTicketRepo
	members   repos.WorkTicketMemberRepo
	dailies   repos.DailyTicketRepo
	dtWorkers repos.DailyTicketWorkerRepo
	snapshots repos.DailyTicketSnapshotRepo
	sessions  repos.TrainingSessionRepo
	grants    repos.AccessGrantRepo
	events    repos.AccessEventRepo
	alerts    repos.AlertRepo
	audits    repos.AuditLogRepo
	users     repos.SysUserRepo

	notifier *notifyRecorder

	audit        AuditService
	access       AccessService
	materializer MaterializerService
	compensator  CompensatorService
}

// notifyRecorder stands in for the queue-backed notification service so the
// materializer and training flows can run without redis.
type notifyRecorder struct {
	enqueued []Notification
}

func (n *notifyRecorder) Enqueue(ctx context.Context, tx *gorm.DB, msg Notification) (bool, error) {
	for _, prev := range n.enqueued {
		if msg.DedupKey != "" && prev.DedupKey == msg.DedupKey {
			return false, nil
		}
	}
	n.enqueued = append(n.enqueued, msg)
	return true, nil
}

func (n *notifyRecorder) DispatchBatch(ctx context.Context, max int) (int, error) {
	return 0, nil
}

func (n *notifyRecorder) ListForWorker(ctx context.Context, workerID uuid.UUID, limit, offset int) ([]*types.NotificationLog, int64, error) {
	return nil, 0, nil
}

func (n *notifyRecorder) MarkRead(ctx context.Context, id, workerID uuid.UUID) (bool, error) {
	return false, nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.OpenTestDB(t)
	log := testutil.NewTestLogger(t)

	env := &testEnv{
		db:        db,
		log:       log,
		vendor:    accessctrl.NewMockClient(log),
		sites:     repos.NewSiteRepo(db, log),
		workers:   repos.NewWorkerRepo(db, log),
		areas:     repos.NewWorkAreaRepo(db, log),
		videos:    repos.NewTrainingVideoRepo(db, log),
		tickets:   repos.NewWorkTicketRepo(db, log),
		members:   repos.NewWorkTicketMemberRepo(db, log),
		dailies:   repos.NewDailyTicketRepo(db, log),
		dtWorkers: repos.NewDailyTicketWorkerRepo(db, log),
		snapshots: repos.NewDailyTicketSnapshotRepo(db, log),
		sessions:  repos.NewTrainingSessionRepo(db, log),
		grants:    repos.NewAccessGrantRepo(db, log),
		events:    repos.NewAccessEventRepo(db, log),
		alerts:    repos.NewAlertRepo(db, log),
		audits:    repos.NewAuditLogRepo(db, log),
		users:     repos.NewSysUserRepo(db, log),
	}

	env.notifier = &notifyRecorder{}
	env.audit = NewAuditService(env.audits, log)
	env.access = NewAccessService(db, env.grants, env.events, env.dailies, env.dtWorkers,
		env.members, env.workers, env.areas, env.sites, env.vendor, log)
	env.materializer = NewMaterializerService(db, env.tickets, env.members, env.dailies,
		env.dtWorkers, env.snapshots, env.workers, env.areas, env.videos, env.notifier, log)
	env.compensator = NewCompensatorService(db, env.tickets, env.members, env.dailies,
		env.dtWorkers, env.snapshots, env.sessions, env.grants, env.workers, env.areas,
		env.videos, env.sites, env.access, env.audit, log)
	return env
}

func (e *testEnv) seedSite(t *testing.T) *types.Site {
	t.Helper()
	site := &types.Site{
		ID:                      uuid.New(),
		Name:                    "North Yard",
		Timezone:                "UTC",
		DefaultAccessStart:      "06:00:00",
		DefaultAccessEnd:        "20:00:00",
		DefaultTrainingDeadline: "09:00:00",
		IsActive:                true,
	}
	if _, err := e.sites.Create(context.Background(), nil, []*types.Site{site}); err != nil {
		t.Fatalf("seed site: %v", err)
	}
	return site
}

func (e *testEnv) seedWorker(t *testing.T, siteID uuid.UUID, bound bool) *types.Worker {
	t.Helper()
	id := uuid.New()
	w := &types.Worker{
		ID:           id,
		SiteID:       siteID,
		ContractorID: uuid.New(),
		Name:         "Worker " + id.String()[:8],
		IDNo:         "ID" + id.String()[:12],
		FaceID:       "face-" + id.String()[:8],
		IsBound:      bound,
		IsActive:     true,
	}
	if _, err := e.workers.Create(context.Background(), nil, []*types.Worker{w}); err != nil {
		t.Fatalf("seed worker: %v", err)
	}
	return w
}

func (e *testEnv) seedArea(t *testing.T, siteID uuid.UUID, accessGroupID string) *types.WorkArea {
	t.Helper()
	a := &types.WorkArea{
		ID:            uuid.New(),
		SiteID:        siteID,
		Name:          "Area " + accessGroupID,
		AccessGroupID: accessGroupID,
		IsActive:      true,
	}
	if _, err := e.areas.Create(context.Background(), nil, []*types.WorkArea{a}); err != nil {
		t.Fatalf("seed area: %v", err)
	}
	return a
}

func (e *testEnv) seedVideo(t *testing.T, siteID uuid.UUID, durationSec int) *types.TrainingVideo {
	t.Helper()
	v := &types.TrainingVideo{
		ID:                   uuid.New(),
		SiteID:               siteID,
		Title:                "Safety Induction",
		DurationSec:          durationSec,
		RequiredWatchPercent: 0.95,
		IsActive:             true,
	}
	if _, err := e.videos.Create(context.Background(), nil, []*types.TrainingVideo{v}); err != nil {
		t.Fatalf("seed video: %v", err)
	}
	return v
}

func (e *testEnv) seedTicket(t *testing.T, siteID uuid.UUID, start, end time.Time) *types.WorkTicket {
	t.Helper()
	ticket := &types.WorkTicket{
		ID:                      uuid.New(),
		SiteID:                  siteID,
		ContractorID:            uuid.New(),
		Title:                   "Scaffold work",
		StartDate:               start,
		EndDate:                 end,
		DefaultAccessStart:      "06:00:00",
		DefaultAccessEnd:        "20:00:00",
		DefaultTrainingDeadline: "09:00:00",
		Status:                  types.TicketStatusActive,
	}
	if _, err := e.tickets.Create(context.Background(), nil, []*types.WorkTicket{ticket}); err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
	return ticket
}

func (e *testEnv) attachWorker(t *testing.T, ticket *types.WorkTicket, workerID uuid.UUID) {
	t.Helper()
	err := e.members.AddWorkers(context.Background(), nil, []*types.WorkTicketWorker{{
		ID:       uuid.New(),
		TicketID: ticket.ID,
		WorkerID: workerID,
		SiteID:   ticket.SiteID,
		Status:   types.JoinStatusActive,
		AddedAt:  time.Now(),
	}})
	if err != nil {
		t.Fatalf("attach worker: %v", err)
	}
}

func (e *testEnv) attachArea(t *testing.T, ticket *types.WorkTicket, areaID uuid.UUID) {
	t.Helper()
	err := e.members.AddAreas(context.Background(), nil, []*types.WorkTicketArea{{
		ID:       uuid.New(),
		TicketID: ticket.ID,
		AreaID:   areaID,
		SiteID:   ticket.SiteID,
		Status:   types.JoinStatusActive,
		AddedAt:  time.Now(),
	}})
	if err != nil {
		t.Fatalf("attach area: %v", err)
	}
}

func (e *testEnv) attachVideo(t *testing.T, ticket *types.WorkTicket, videoID uuid.UUID) {
	t.Helper()
	err := e.members.AddVideos(context.Background(), nil, []*types.WorkTicketVideo{{
		ID:                   uuid.New(),
		TicketID:             ticket.ID,
		VideoID:              videoID,
		SiteID:               ticket.SiteID,
		RequiredWatchPercent: 0.95,
		Status:               types.JoinStatusActive,
		AddedAt:              time.Now(),
	}})
	if err != nil {
		t.Fatalf("attach video: %v", err)
	}
}

func sysAdminCtx() tenant.Context {
	return tenant.Context{UserID: uuid.New(), Role: types.RoleSysAdmin}
}

// midnightUTC truncates now to the current UTC date, matching how daily
// tickets are keyed.
func midnightUTC() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
