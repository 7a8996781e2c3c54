package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/sitepass/sitepass-backend/internal/adapters/accessctrl"
	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/repos"
	"github.com/sitepass/sitepass-backend/internal/services"
	"github.com/sitepass/sitepass-backend/internal/types"
	"github.com/sitepass/sitepass-backend/internal/utils"
)

// Retry ladder after each failed push attempt. The last entry caps every
// further attempt.
var syncRetryDelays = []time.Duration{
	60 * time.Second,
	120 * time.Second,
	240 * time.Second,
	480 * time.Second,
	960 * time.Second,
}

// GrantSyncWorker is the periodic sweep that moves grants through the vendor:
// pending rows are pushed, expired rows are revoked, and revoked rows get
// their vendor-side deletion confirmed.
type GrantSyncWorker struct {
	log         *logger.Logger
	grants      repos.AccessGrantRepo
	workers     repos.WorkerRepo
	areas       repos.WorkAreaRepo
	access      services.AccessService
	vendor      accessctrl.Client
	interval    time.Duration
	pushBatch   int
	revokeBatch int
}

func NewGrantSyncWorker(
	grants repos.AccessGrantRepo,
	workers repos.WorkerRepo,
	areas repos.WorkAreaRepo,
	access services.AccessService,
	vendor accessctrl.Client,
	baseLog *logger.Logger,
) *GrantSyncWorker {
	log := baseLog.With("component", "GrantSyncWorker")
	return &GrantSyncWorker{
		log:         log,
		grants:      grants,
		workers:     workers,
		areas:       areas,
		access:      access,
		vendor:      vendor,
		interval:    time.Duration(utils.GetEnvAsInt("GRANT_SYNC_INTERVAL_SEC", 60, log)) * time.Second,
		pushBatch:   utils.GetEnvAsInt("GRANT_SYNC_PUSH_BATCH", 100, log),
		revokeBatch: utils.GetEnvAsInt("GRANT_SYNC_REVOKE_BATCH", 50, log),
	}
}

func (w *GrantSyncWorker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				func() {
					defer func() {
						if r := recover(); r != nil {
							w.log.Error("Grant sync sweep panic", "panic", r)
						}
					}()
					w.Sweep(ctx)
				}()
			}
		}
	}()
}

// Sweep runs one full pass. Expiry goes first so a grant whose window closed
// this tick is revoked, never pushed. Exposed so tests and the scheduler can
// trigger it without the ticker.
func (w *GrantSyncWorker) Sweep(ctx context.Context) {
	now := time.Now()
	if n, err := w.access.ExpireGrants(ctx, now, w.pushBatch); err != nil {
		w.log.Error("grant expiry failed", "error", err)
	} else if n > 0 {
		w.log.Info("expired grants", "count", n)
	}
	if n := w.pushPending(ctx, now); n > 0 {
		w.log.Info("pushed grants", "count", n)
	}
	if n := w.confirmRevokes(ctx); n > 0 {
		w.log.Info("confirmed vendor revokes", "count", n)
	}
}

func (w *GrantSyncWorker) pushPending(ctx context.Context, now time.Time) int {
	batch, err := w.grants.ClaimSyncBatch(ctx, nil, w.pushBatch, now, syncRetryDelays)
	if err != nil {
		w.log.Error("failed to claim sync batch", "error", err)
		return 0
	}

	pushed := 0
	for _, g := range batch {
		req, err := w.buildRequest(ctx, g)
		if err != nil {
			w.log.Error("failed to build grant request", "grant_id", g.ID, "error", err)
			if herr := w.access.HandlePushResult(ctx, g, nil, err); herr != nil {
				w.log.Error("failed to record push result", "grant_id", g.ID, "error", herr)
			}
			continue
		}

		result, pushErr := w.vendor.PushGrant(ctx, *req)
		if err := w.access.HandlePushResult(ctx, g, result, pushErr); err != nil {
			w.log.Error("failed to record push result", "grant_id", g.ID, "error", err)
			continue
		}
		if pushErr == nil || errors.Is(pushErr, accessctrl.ErrConflict) {
			pushed++
		} else {
			w.log.Warn("grant push failed, will retry", "grant_id", g.ID,
				"attempt", g.SyncAttemptCount+1, "error", pushErr)
		}
	}
	return pushed
}

func (w *GrantSyncWorker) buildRequest(ctx context.Context, g *types.AccessGrant) (*accessctrl.GrantRequest, error) {
	worker, err := w.workers.GetByID(ctx, nil, g.WorkerID)
	if err != nil {
		return nil, err
	}
	if worker == nil {
		return nil, errors.New("worker not found")
	}
	area, err := w.areas.GetByID(ctx, nil, g.AreaID)
	if err != nil {
		return nil, err
	}
	if area == nil {
		return nil, errors.New("area not found")
	}
	return &accessctrl.GrantRequest{
		GrantID:       g.ID.String(),
		WorkerName:    worker.Name,
		WorkerIDNo:    worker.IDNo,
		FaceID:        worker.FaceID,
		AccessGroupID: area.AccessGroupID,
		ValidFrom:     g.ValidFrom,
		ValidTo:       g.ValidTo,
	}, nil
}

// confirmRevokes tells the vendor about revoked grants it may still hold. A
// vendor 404 counts as confirmed; anything else leaves the row for the next
// sweep.
func (w *GrantSyncWorker) confirmRevokes(ctx context.Context) int {
	rows, err := w.grants.ListPendingVendorRevoke(ctx, nil, w.revokeBatch)
	if err != nil {
		w.log.Error("failed to list pending vendor revokes", "error", err)
		return 0
	}

	confirmed := 0
	for _, g := range rows {
		err := w.vendor.RevokeGrant(ctx, g.ID.String())
		if err != nil && !errors.Is(err, accessctrl.ErrNotFound) {
			w.log.Warn("vendor revoke failed, will retry", "grant_id", g.ID, "error", err)
			continue
		}
		if err := w.grants.UpdateFields(ctx, nil, g.ID, map[string]interface{}{
			"vendor_revoked": true,
		}); err != nil {
			w.log.Error("failed to mark vendor revoke", "grant_id", g.ID, "error", err)
			continue
		}
		confirmed++
	}
	return confirmed
}
