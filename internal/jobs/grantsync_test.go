package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/adapters/accessctrl"
	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/repos"
	"github.com/sitepass/sitepass-backend/internal/services"
	"github.com/sitepass/sitepass-backend/internal/testutil"
	"github.com/sitepass/sitepass-backend/internal/types"
)

type grantSyncFixture struct {
	db     *gorm.DB
	log    *logger.Logger
	vendor *accessctrl.MockClient
	grants repos.AccessGrantRepo
	worker *types.Worker
	area   *types.WorkArea
	sync   *GrantSyncWorker
}

func newGrantSyncFixture(t *testing.T) *grantSyncFixture {
	t.Helper()
	db := testutil.OpenTestDB(t)
	log := testutil.NewTestLogger(t)
	ctx := context.Background()

	sites := repos.NewSiteRepo(db, log)
	workers := repos.NewWorkerRepo(db, log)
	areas := repos.NewWorkAreaRepo(db, log)
	dailies := repos.NewDailyTicketRepo(db, log)
	dtWorkers := repos.NewDailyTicketWorkerRepo(db, log)
	members := repos.NewWorkTicketMemberRepo(db, log)
	grants := repos.NewAccessGrantRepo(db, log)
	events := repos.NewAccessEventRepo(db, log)
	vendor := accessctrl.NewMockClient(log)

	siteID := uuid.New()
	worker := &types.Worker{
		ID:           uuid.New(),
		SiteID:       siteID,
		ContractorID: uuid.New(),
		Name:         "Push Target",
		IDNo:         "ID-push-1",
		FaceID:       "face-push-1",
		IsBound:      true,
		IsActive:     true,
	}
	if _, err := workers.Create(ctx, nil, []*types.Worker{worker}); err != nil {
		t.Fatalf("seed worker: %v", err)
	}
	area := &types.WorkArea{
		ID:            uuid.New(),
		SiteID:        siteID,
		Name:          "Zone 1",
		AccessGroupID: "grp-sync",
		IsActive:      true,
	}
	if _, err := areas.Create(ctx, nil, []*types.WorkArea{area}); err != nil {
		t.Fatalf("seed area: %v", err)
	}

	access := services.NewAccessService(db, grants, events, dailies, dtWorkers,
		members, workers, areas, sites, vendor, log)
	return &grantSyncFixture{
		db:     db,
		log:    log,
		vendor: vendor,
		grants: grants,
		worker: worker,
		area:   area,
		sync:   NewGrantSyncWorker(grants, workers, areas, access, vendor, log),
	}
}

func (f *grantSyncFixture) seedGrant(t *testing.T, validTo time.Time) *types.AccessGrant {
	t.Helper()
	g := &types.AccessGrant{
		ID:            uuid.New(),
		DailyTicketID: uuid.New(),
		WorkerID:      f.worker.ID,
		AreaID:        f.area.ID,
		SiteID:        f.worker.SiteID,
		ValidFrom:     validTo.Add(-8 * time.Hour),
		ValidTo:       validTo,
		Status:        types.GrantStatusPendingSync,
	}
	if err := f.grants.CreateIgnoreConflicts(context.Background(), nil, []*types.AccessGrant{g}); err != nil {
		t.Fatalf("seed grant: %v", err)
	}
	return g
}

func TestSweepPushesPendingGrants(t *testing.T) {
	f := newGrantSyncFixture(t)
	ctx := context.Background()
	g := f.seedGrant(t, time.Now().Add(8*time.Hour))

	f.sync.Sweep(ctx)

	got, err := f.grants.GetByID(ctx, nil, g.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.GrantStatusSynced {
		t.Fatalf("Status = %s, want %s", got.Status, types.GrantStatusSynced)
	}
	if got.VendorRef != "mock-"+g.ID.String() {
		t.Errorf("VendorRef = %s, want mock-%s", got.VendorRef, g.ID)
	}
	if got.SyncAttemptCount != 1 {
		t.Errorf("SyncAttemptCount = %d, want 1", got.SyncAttemptCount)
	}
}

func TestSweepRetriesFailedPushesWithoutGivingUp(t *testing.T) {
	f := newGrantSyncFixture(t)
	ctx := context.Background()
	g := f.seedGrant(t, time.Now().Add(8*time.Hour))

	f.vendor.FailPushes = 1
	f.sync.Sweep(ctx)

	got, err := f.grants.GetByID(ctx, nil, g.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.GrantStatusSyncFailed {
		t.Fatalf("Status after failed push = %s, want %s", got.Status, types.GrantStatusSyncFailed)
	}
	if got.SyncAttemptCount != 1 {
		t.Fatalf("SyncAttemptCount = %d, want 1", got.SyncAttemptCount)
	}
	if got.LastSyncAt == nil {
		t.Fatal("LastSyncAt not set")
	}

	// Within the backoff nothing happens.
	f.sync.Sweep(ctx)
	got, _ = f.grants.GetByID(ctx, nil, g.ID)
	if got.SyncAttemptCount != 1 {
		t.Fatalf("SyncAttemptCount during backoff = %d, want 1", got.SyncAttemptCount)
	}

	// A grant that has failed many times is still retried once its capped
	// backoff elapses, as long as the window is open.
	err = f.grants.UpdateFields(ctx, nil, g.ID, map[string]interface{}{
		"sync_attempt_count": 7,
		"last_sync_at":       time.Now().Add(-20 * time.Minute),
	})
	if err != nil {
		t.Fatalf("backdate: %v", err)
	}
	f.sync.Sweep(ctx)
	got, _ = f.grants.GetByID(ctx, nil, g.ID)
	if got.Status != types.GrantStatusSynced {
		t.Fatalf("Status after retry = %s, want %s", got.Status, types.GrantStatusSynced)
	}
	if got.SyncAttemptCount != 8 {
		t.Errorf("SyncAttemptCount = %d, want 8", got.SyncAttemptCount)
	}
}

func TestSweepRevokesClosedWindowInsteadOfPushing(t *testing.T) {
	f := newGrantSyncFixture(t)
	ctx := context.Background()
	g := f.seedGrant(t, time.Now())

	f.sync.Sweep(ctx)

	got, err := f.grants.GetByID(ctx, nil, g.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.GrantStatusRevoked {
		t.Fatalf("Status = %s, want %s", got.Status, types.GrantStatusRevoked)
	}
	if got.RevokeReason != types.RevokeReasonExpired {
		t.Errorf("RevokeReason = %s, want %s", got.RevokeReason, types.RevokeReasonExpired)
	}
	if got.SyncAttemptCount != 0 {
		t.Errorf("SyncAttemptCount = %d, want 0 for a grant that was never pushed", got.SyncAttemptCount)
	}
	held, err := f.vendor.QueryEffectiveGrants(ctx, f.area.AccessGroupID)
	if err != nil {
		t.Fatalf("QueryEffectiveGrants: %v", err)
	}
	if len(held) != 0 {
		t.Errorf("vendor holds %d grants, want 0", len(held))
	}
}
