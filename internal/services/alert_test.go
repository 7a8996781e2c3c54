package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/sitepass/sitepass-backend/internal/apperr"
	"github.com/sitepass/sitepass-backend/internal/repos"
	"github.com/sitepass/sitepass-backend/internal/tenant"
	"github.com/sitepass/sitepass-backend/internal/types"
)

func seedAlert(t *testing.T, env *testEnv, siteID *uuid.UUID) *types.Alert {
	t.Helper()
	a := &types.Alert{
		ID:       uuid.New(),
		SiteID:   siteID,
		Type:     types.AlertTypeSyncStuck,
		Priority: types.AlertPriorityMedium,
		Status:   types.AlertStatusUnacknowledged,
		Title:    "grants stuck in sync",
		DedupKey: "test:" + uuid.New().String(),
	}
	created, err := env.alerts.CreateUnlessOpen(context.Background(), nil, a)
	if err != nil || !created {
		t.Fatalf("seed alert: created=%v err=%v", created, err)
	}
	return a
}

func TestAlertAcknowledgeAndResolve(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAlertService(env.db, env.alerts, env.audit, env.log)
	ctx := context.Background()
	tctx := sysAdminCtx()

	site := env.seedSite(t)
	alert := seedAlert(t, env, &site.ID)

	if err := svc.Acknowledge(ctx, tctx, alert.ID, "req-1", "127.0.0.1"); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	got, _ := env.alerts.GetByID(ctx, nil, alert.ID)
	if got.Status != types.AlertStatusAcknowledged {
		t.Errorf("Status = %s, want %s", got.Status, types.AlertStatusAcknowledged)
	}
	if got.AcknowledgedBy == nil || *got.AcknowledgedBy != tctx.UserID {
		t.Errorf("AcknowledgedBy = %v, want %s", got.AcknowledgedBy, tctx.UserID)
	}

	// Acknowledge is only valid from the open state.
	err := svc.Acknowledge(ctx, tctx, alert.ID, "req-2", "127.0.0.1")
	if code := apperr.CodeOf(err); code != apperr.CodeValidationError {
		t.Fatalf("re-ack code = %d, want %d", code, apperr.CodeValidationError)
	}

	if err := svc.Resolve(ctx, tctx, alert.ID, "restarted the sweep", "req-3", "127.0.0.1"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	got, _ = env.alerts.GetByID(ctx, nil, alert.ID)
	if got.Status != types.AlertStatusResolved {
		t.Errorf("Status = %s, want %s", got.Status, types.AlertStatusResolved)
	}

	err = svc.Resolve(ctx, tctx, alert.ID, "", "req-4", "127.0.0.1")
	if code := apperr.CodeOf(err); code != apperr.CodeValidationError {
		t.Fatalf("re-resolve code = %d, want %d", code, apperr.CodeValidationError)
	}
}

func TestAlertTenantScoping(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAlertService(env.db, env.alerts, env.audit, env.log)
	ctx := context.Background()

	site := env.seedSite(t)
	otherSite := env.seedSite(t)
	siteAlert := seedAlert(t, env, &site.ID)
	globalAlert := seedAlert(t, env, nil)
	seedAlert(t, env, &otherSite.ID)

	contractor := tenant.Context{
		UserID:          uuid.New(),
		Role:            types.RoleContractorAdmin,
		AccessibleSites: []uuid.UUID{site.ID},
	}

	// A contractor admin only sees (and touches) alerts on their sites.
	alerts, total, err := svc.List(ctx, contractor, repos.AlertFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(alerts) != 1 || alerts[0].ID != siteAlert.ID {
		t.Fatalf("scoped list = %d items, want only the site alert", len(alerts))
	}

	err = svc.Acknowledge(ctx, contractor, globalAlert.ID, "req-1", "127.0.0.1")
	if code := apperr.CodeOf(err); code != apperr.CodePermissionDenied {
		t.Fatalf("global alert ack code = %d, want %d", code, apperr.CodePermissionDenied)
	}

	// Site-less alerts belong to the platform operator.
	if err := svc.Acknowledge(ctx, sysAdminCtx(), globalAlert.ID, "req-2", "127.0.0.1"); err != nil {
		t.Fatalf("sysadmin ack: %v", err)
	}
}

func TestAlertAcknowledgeUnknownID(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAlertService(env.db, env.alerts, env.audit, env.log)

	err := svc.Acknowledge(context.Background(), sysAdminCtx(), uuid.New(), "req-1", "127.0.0.1")
	if code := apperr.CodeOf(err); code != apperr.CodeNotFound {
		t.Fatalf("code = %d, want %d", code, apperr.CodeNotFound)
	}
}
