package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sitepass/sitepass-backend/internal/testutil"
	"github.com/sitepass/sitepass-backend/internal/types"
)

func TestBackoffFor(t *testing.T) {
	delays := []time.Duration{
		60 * time.Second, 120 * time.Second, 240 * time.Second, 480 * time.Second, 960 * time.Second,
	}
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 60 * time.Second},
		{1, 60 * time.Second},
		{2, 120 * time.Second},
		{3, 240 * time.Second},
		{4, 480 * time.Second},
		{5, 960 * time.Second},
		{6, 960 * time.Second},
		{100, 960 * time.Second},
	}
	for _, tt := range tests {
		if got := backoffFor(tt.attempts, delays); got != tt.want {
			t.Errorf("backoffFor(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
	if got := backoffFor(3, nil); got != 0 {
		t.Errorf("backoffFor with no delays = %v, want 0", got)
	}
}

func seedGrant(t *testing.T, repo AccessGrantRepo, status string, validTo time.Time) *types.AccessGrant {
	t.Helper()
	g := &types.AccessGrant{
		ID:            uuid.New(),
		DailyTicketID: uuid.New(),
		WorkerID:      uuid.New(),
		AreaID:        uuid.New(),
		SiteID:        uuid.New(),
		ValidFrom:     validTo.Add(-8 * time.Hour),
		ValidTo:       validTo,
		Status:        status,
	}
	if err := repo.CreateIgnoreConflicts(context.Background(), nil, []*types.AccessGrant{g}); err != nil {
		t.Fatalf("seed grant: %v", err)
	}
	return g
}

func TestRevokeIfActive(t *testing.T) {
	db := testutil.OpenTestDB(t)
	log := testutil.NewTestLogger(t)
	repo := NewAccessGrantRepo(db, log)
	ctx := context.Background()

	g := seedGrant(t, repo, types.GrantStatusPendingSync, time.Now().Add(8*time.Hour))

	ok, err := repo.RevokeIfActive(ctx, nil, g.ID, types.RevokeReasonWorkerRemoved)
	if err != nil {
		t.Fatalf("RevokeIfActive: %v", err)
	}
	if !ok {
		t.Fatal("expected the first revoke to flip the grant")
	}

	got, err := repo.GetByID(ctx, nil, g.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.GrantStatusRevoked {
		t.Errorf("Status = %s, want %s", got.Status, types.GrantStatusRevoked)
	}
	if got.RevokeReason != types.RevokeReasonWorkerRemoved {
		t.Errorf("RevokeReason = %s, want %s", got.RevokeReason, types.RevokeReasonWorkerRemoved)
	}
	if got.RevokedAt == nil {
		t.Error("RevokedAt not set")
	}

	// REVOKED is terminal; a second revoke is a no-op.
	ok, err = repo.RevokeIfActive(ctx, nil, g.ID, types.RevokeReasonManual)
	if err != nil {
		t.Fatalf("second RevokeIfActive: %v", err)
	}
	if ok {
		t.Fatal("revoking a revoked grant must not report a change")
	}
	got, _ = repo.GetByID(ctx, nil, g.ID)
	if got.RevokeReason != types.RevokeReasonWorkerRemoved {
		t.Errorf("RevokeReason overwritten to %s", got.RevokeReason)
	}
}

func TestListExpired(t *testing.T) {
	db := testutil.OpenTestDB(t)
	log := testutil.NewTestLogger(t)
	repo := NewAccessGrantRepo(db, log)
	ctx := context.Background()

	now := time.Now()
	expired := seedGrant(t, repo, types.GrantStatusSynced, now.Add(-time.Hour))
	boundary := seedGrant(t, repo, types.GrantStatusSynced, now)
	seedGrant(t, repo, types.GrantStatusSynced, now.Add(8*time.Hour))
	seedGrant(t, repo, types.GrantStatusRevoked, now.Add(-time.Hour))

	rows, err := repo.ListExpired(ctx, nil, now, 10)
	if err != nil {
		t.Fatalf("ListExpired: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expired = %d, want 2", len(rows))
	}
	got := map[uuid.UUID]bool{}
	for _, g := range rows {
		got[g.ID] = true
	}
	if !got[expired.ID] {
		t.Error("grant past its window missing from expired set")
	}
	// The window closes at valid_to, so a grant expiring exactly now counts.
	if !got[boundary.ID] {
		t.Error("grant expiring exactly at now missing from expired set")
	}
}

func TestListStuckIgnoresFreshTerminalAndExpired(t *testing.T) {
	db := testutil.OpenTestDB(t)
	log := testutil.NewTestLogger(t)
	repo := NewAccessGrantRepo(db, log)
	ctx := context.Background()

	now := time.Now()
	siteID := uuid.New()
	mk := func(status string, createdAt, validTo time.Time, site uuid.UUID) *types.AccessGrant {
		g := &types.AccessGrant{
			ID:            uuid.New(),
			DailyTicketID: uuid.New(),
			WorkerID:      uuid.New(),
			AreaID:        uuid.New(),
			SiteID:        site,
			ValidFrom:     validTo.Add(-8 * time.Hour),
			ValidTo:       validTo,
			Status:        status,
			CreatedAt:     createdAt,
		}
		if err := repo.CreateIgnoreConflicts(ctx, nil, []*types.AccessGrant{g}); err != nil {
			t.Fatalf("seed: %v", err)
		}
		return g
	}

	stuck := mk(types.GrantStatusSyncFailed, now.Add(-time.Hour), now.Add(8*time.Hour), siteID)
	// Fresh, terminal, already expired, or another site's: none of these count.
	mk(types.GrantStatusPendingSync, now, now.Add(8*time.Hour), siteID)
	mk(types.GrantStatusSynced, now.Add(-time.Hour), now.Add(8*time.Hour), siteID)
	mk(types.GrantStatusSyncFailed, now.Add(-3*time.Hour), now.Add(-time.Hour), siteID)
	mk(types.GrantStatusSyncFailed, now.Add(-time.Hour), now.Add(8*time.Hour), uuid.New())

	rows, err := repo.ListStuck(ctx, nil, siteID, now.Add(-10*time.Minute), now)
	if err != nil {
		t.Fatalf("ListStuck: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("stuck = %d, want 1", len(rows))
	}
	if rows[0].ID != stuck.ID {
		t.Errorf("stuck ID = %s, want %s", rows[0].ID, stuck.ID)
	}
}

func TestClaimSyncBatch(t *testing.T) {
	db := testutil.OpenTestDB(t)
	log := testutil.NewTestLogger(t)
	repo := NewAccessGrantRepo(db, log)
	ctx := context.Background()
	delays := []time.Duration{
		60 * time.Second, 120 * time.Second, 240 * time.Second, 480 * time.Second, 960 * time.Second,
	}

	now := time.Now()
	mk := func(status string, validTo time.Time, attempts int, lastSync *time.Time) *types.AccessGrant {
		g := &types.AccessGrant{
			ID:               uuid.New(),
			DailyTicketID:    uuid.New(),
			WorkerID:         uuid.New(),
			AreaID:           uuid.New(),
			SiteID:           uuid.New(),
			ValidFrom:        validTo.Add(-8 * time.Hour),
			ValidTo:          validTo,
			Status:           status,
			SyncAttemptCount: attempts,
			LastSyncAt:       lastSync,
		}
		if err := repo.CreateIgnoreConflicts(ctx, nil, []*types.AccessGrant{g}); err != nil {
			t.Fatalf("seed: %v", err)
		}
		return g
	}
	tsPtr := func(ts time.Time) *time.Time { return &ts }

	pending := mk(types.GrantStatusPendingSync, now.Add(8*time.Hour), 0, nil)
	// No attempt cap: a grant that failed many times is still reclaimed once
	// its capped backoff has elapsed.
	veteran := mk(types.GrantStatusSyncFailed, now.Add(8*time.Hour), 7, tsPtr(now.Add(-20*time.Minute)))
	mk(types.GrantStatusSyncFailed, now.Add(8*time.Hour), 1, tsPtr(now.Add(-10*time.Second)))
	mk(types.GrantStatusPendingSync, now.Add(-time.Minute), 0, nil)
	mk(types.GrantStatusSynced, now.Add(8*time.Hour), 1, tsPtr(now.Add(-time.Hour)))

	rows, err := repo.ClaimSyncBatch(ctx, nil, 10, now, delays)
	if err != nil {
		t.Fatalf("ClaimSyncBatch: %v", err)
	}
	got := map[uuid.UUID]bool{}
	for _, g := range rows {
		got[g.ID] = true
	}
	if len(rows) != 2 {
		t.Fatalf("claimed = %d, want 2", len(rows))
	}
	if !got[pending.ID] {
		t.Error("pending grant not claimed")
	}
	if !got[veteran.ID] {
		t.Error("grant with many failed attempts not claimed after its backoff")
	}
}
