package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sitepass/sitepass-backend/internal/adapters/accessctrl"
	"github.com/sitepass/sitepass-backend/internal/repos"
	"github.com/sitepass/sitepass-backend/internal/types"
)

func newReconcileForTest(env *testEnv) *reconcileService {
	return NewReconcileService(nil, env.grants, env.alerts, env.areas,
		env.vendor, env.log).(*reconcileService)
}

func seedSyncedGrant(t *testing.T, env *testEnv, siteID, areaID uuid.UUID, vendorRef string) *types.AccessGrant {
	t.Helper()
	g := &types.AccessGrant{
		ID:            uuid.New(),
		DailyTicketID: uuid.New(),
		WorkerID:      uuid.New(),
		AreaID:        areaID,
		SiteID:        siteID,
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidTo:       time.Now().Add(8 * time.Hour),
		Status:        types.GrantStatusSynced,
		VendorRef:     vendorRef,
	}
	if err := env.grants.CreateIgnoreConflicts(context.Background(), nil, []*types.AccessGrant{g}); err != nil {
		t.Fatalf("seed grant: %v", err)
	}
	return g
}

func TestDriftForSiteFindsMismatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newReconcileForTest(env)

	site := env.seedSite(t)
	area := env.seedArea(t, site.ID, "grp-r")

	// Matched on both sides: excluded from the report.
	matched := seedSyncedGrant(t, env, site.ID, area.ID, "ref-ok")
	env.vendor.SeedGrant(accessctrl.EffectiveGrant{
		VendorRef:     "ref-ok",
		GrantID:       matched.ID.String(),
		AccessGroupID: "grp-r",
		ValidTo:       time.Now().Add(8 * time.Hour),
	})

	// SYNCED in the database but unknown to the vendor.
	missing := seedSyncedGrant(t, env, site.ID, area.ID, "ref-gone")

	// Held by the vendor with no database counterpart.
	env.vendor.SeedGrant(accessctrl.EffectiveGrant{
		VendorRef:     "ref-extra",
		GrantID:       uuid.New().String(),
		AccessGroupID: "grp-r",
		ValidTo:       time.Now().Add(8 * time.Hour),
	})

	report, err := svc.driftForSite(ctx, site, time.Now())
	if err != nil {
		t.Fatalf("driftForSite: %v", err)
	}
	if report.SyncedCount != 2 {
		t.Errorf("SyncedCount = %d, want 2", report.SyncedCount)
	}
	if len(report.MissingInVendor) != 1 {
		t.Fatalf("MissingInVendor = %d, want 1", len(report.MissingInVendor))
	}
	if report.MissingInVendor[0].GrantID != missing.ID.String() {
		t.Errorf("missing GrantID = %s, want %s", report.MissingInVendor[0].GrantID, missing.ID)
	}
	if len(report.ExtraInVendor) != 1 {
		t.Fatalf("ExtraInVendor = %d, want 1", len(report.ExtraInVendor))
	}
	if report.ExtraInVendor[0].VendorRef != "ref-extra" {
		t.Errorf("extra VendorRef = %s, want ref-extra", report.ExtraInVendor[0].VendorRef)
	}
	if report.ExtraInVendor[0].AreaID != area.ID.String() {
		t.Errorf("extra AreaID = %s, want %s", report.ExtraInVendor[0].AreaID, area.ID)
	}
}

func TestRunL1RaisesStuckAlertOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newReconcileForTest(env)

	site := env.seedSite(t)
	stuck := &types.AccessGrant{
		ID:            uuid.New(),
		DailyTicketID: uuid.New(),
		WorkerID:      uuid.New(),
		AreaID:        uuid.New(),
		SiteID:        site.ID,
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidTo:       time.Now().Add(8 * time.Hour),
		Status:        types.GrantStatusPendingSync,
		CreatedAt:     time.Now().Add(-30 * time.Minute),
	}
	if err := env.grants.CreateIgnoreConflicts(ctx, nil, []*types.AccessGrant{stuck}); err != nil {
		t.Fatalf("seed stuck grant: %v", err)
	}

	raised, err := svc.RunL1(ctx, site, time.Now())
	if err != nil {
		t.Fatalf("RunL1: %v", err)
	}
	if raised != 1 {
		t.Fatalf("raised = %d, want 1", raised)
	}

	alerts, _, err := env.alerts.List(ctx, nil, repos.AlertFilter{Type: types.AlertTypeSyncStuck})
	if err != nil {
		t.Fatalf("List alerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
	if alerts[0].Priority != types.AlertPriorityMedium {
		t.Errorf("Priority = %s, want %s", alerts[0].Priority, types.AlertPriorityMedium)
	}
	if alerts[0].SiteID == nil || *alerts[0].SiteID != site.ID {
		t.Errorf("SiteID = %v, want %s", alerts[0].SiteID, site.ID)
	}

	// Re-running the sweep while the alert is open must not duplicate it.
	raised, err = svc.RunL1(ctx, site, time.Now())
	if err != nil {
		t.Fatalf("second RunL1: %v", err)
	}
	if raised != 0 {
		t.Fatalf("second run raised = %d, want 0", raised)
	}
}

func TestRunL1FreshGrantsAreNotStuck(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newReconcileForTest(env)

	site := env.seedSite(t)
	fresh := &types.AccessGrant{
		ID:            uuid.New(),
		DailyTicketID: uuid.New(),
		WorkerID:      uuid.New(),
		AreaID:        uuid.New(),
		SiteID:        site.ID,
		ValidFrom:     time.Now(),
		ValidTo:       time.Now().Add(8 * time.Hour),
		Status:        types.GrantStatusPendingSync,
	}
	if err := env.grants.CreateIgnoreConflicts(ctx, nil, []*types.AccessGrant{fresh}); err != nil {
		t.Fatalf("seed grant: %v", err)
	}

	raised, err := svc.RunL1(ctx, site, time.Now())
	if err != nil {
		t.Fatalf("RunL1: %v", err)
	}
	if raised != 0 {
		t.Fatalf("raised = %d, want 0", raised)
	}
}

func TestRunL1SkipsExpiredBacklog(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newReconcileForTest(env)

	site := env.seedSite(t)
	// Unsynced but already past its window: the expiry sweep owns it.
	lapsed := &types.AccessGrant{
		ID:            uuid.New(),
		DailyTicketID: uuid.New(),
		WorkerID:      uuid.New(),
		AreaID:        uuid.New(),
		SiteID:        site.ID,
		ValidFrom:     time.Now().Add(-10 * time.Hour),
		ValidTo:       time.Now().Add(-time.Hour),
		Status:        types.GrantStatusSyncFailed,
		CreatedAt:     time.Now().Add(-10 * time.Hour),
	}
	if err := env.grants.CreateIgnoreConflicts(ctx, nil, []*types.AccessGrant{lapsed}); err != nil {
		t.Fatalf("seed grant: %v", err)
	}

	raised, err := svc.RunL1(ctx, site, time.Now())
	if err != nil {
		t.Fatalf("RunL1: %v", err)
	}
	if raised != 0 {
		t.Fatalf("raised = %d, want 0", raised)
	}
}
