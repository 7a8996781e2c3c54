package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/types"
)

type AccessGrantRepo interface {
	CreateIgnoreConflicts(ctx context.Context, tx *gorm.DB, rows []*types.AccessGrant) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AccessGrant, error)
	ListByDailyTicketWorker(ctx context.Context, tx *gorm.DB, dailyTicketID, workerID uuid.UUID) ([]*types.AccessGrant, error)
	ListByDailyTicket(ctx context.Context, tx *gorm.DB, dailyTicketID uuid.UUID, statuses []string) ([]*types.AccessGrant, error)
	ListUnderDailyTickets(ctx context.Context, tx *gorm.DB, dailyTicketIDs []uuid.UUID, statuses []string) ([]*types.AccessGrant, error)
	ClaimSyncBatch(ctx context.Context, tx *gorm.DB, limit int, now time.Time, retryDelays []time.Duration) ([]*types.AccessGrant, error)
	ListExpired(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*types.AccessGrant, error)
	ListStuck(ctx context.Context, tx *gorm.DB, siteID uuid.UUID, olderThan, now time.Time) ([]*types.AccessGrant, error)
	ListSyncedBySite(ctx context.Context, tx *gorm.DB, siteID uuid.UUID) ([]*types.AccessGrant, error)
	ListPendingVendorRevoke(ctx context.Context, tx *gorm.DB, limit int) ([]*types.AccessGrant, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	RevokeIfActive(ctx context.Context, tx *gorm.DB, id uuid.UUID, reason string) (bool, error)
}

type accessGrantRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAccessGrantRepo(db *gorm.DB, baseLog *logger.Logger) AccessGrantRepo {
	return &accessGrantRepo{db: db, log: baseLog.With("repo", "AccessGrantRepo")}
}

func (r *accessGrantRepo) CreateIgnoreConflicts(ctx context.Context, tx *gorm.DB, rows []*types.AccessGrant) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

func (r *accessGrantRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AccessGrant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var g types.AccessGrant
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&g).Error
	if err != nil {
		return nil, err
	}
	if g.ID == uuid.Nil {
		return nil, nil
	}
	return &g, nil
}

func (r *accessGrantRepo) ListByDailyTicketWorker(ctx context.Context, tx *gorm.DB, dailyTicketID, workerID uuid.UUID) ([]*types.AccessGrant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.AccessGrant
	if err := transaction.WithContext(ctx).
		Where("daily_ticket_id = ? AND worker_id = ?", dailyTicketID, workerID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *accessGrantRepo) ListByDailyTicket(ctx context.Context, tx *gorm.DB, dailyTicketID uuid.UUID, statuses []string) ([]*types.AccessGrant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).Where("daily_ticket_id = ?", dailyTicketID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var out []*types.AccessGrant
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *accessGrantRepo) ListUnderDailyTickets(ctx context.Context, tx *gorm.DB, dailyTicketIDs []uuid.UUID, statuses []string) ([]*types.AccessGrant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.AccessGrant
	if len(dailyTicketIDs) == 0 {
		return out, nil
	}
	q := transaction.WithContext(ctx).Where("daily_ticket_id IN ?", dailyTicketIDs)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ClaimSyncBatch locks and returns grants due for a vendor push. A grant is
// due while its window is still open and it is PENDING_SYNC, or SYNC_FAILED
// with its backoff elapsed. There is no attempt cap; only the delay is capped
// by the last retryDelays entry. Rows whose valid_to has passed are left for
// the expiry sweep.
func (r *accessGrantRepo) ClaimSyncBatch(ctx context.Context, tx *gorm.DB, limit int, now time.Time, retryDelays []time.Duration) ([]*types.AccessGrant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var claimed []*types.AccessGrant
	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var candidates []*types.AccessGrant
		q := txx.Where("status IN ? AND valid_to > ?",
			[]string{types.GrantStatusPendingSync, types.GrantStatusSyncFailed}, now).
			Order("created_at ASC")
		// sqlite has no row locks; competing sweeps only exist on postgres.
		if txx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if limit > 0 {
			q = q.Limit(limit * 2)
		}
		if err := q.Find(&candidates).Error; err != nil {
			return err
		}

		for _, g := range candidates {
			if g.Status == types.GrantStatusSyncFailed && g.LastSyncAt != nil {
				delay := backoffFor(g.SyncAttemptCount, retryDelays)
				if now.Sub(*g.LastSyncAt) < delay {
					continue
				}
			}
			claimed = append(claimed, g)
			if limit > 0 && len(claimed) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func backoffFor(attempts int, delays []time.Duration) time.Duration {
	if len(delays) == 0 {
		return 0
	}
	if attempts <= 0 {
		return delays[0]
	}
	if attempts > len(delays) {
		return delays[len(delays)-1]
	}
	return delays[attempts-1]
}

// ListExpired returns live grants whose validity window has closed. The
// boundary counts: a grant whose valid_to equals now is already expired.
func (r *accessGrantRepo) ListExpired(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*types.AccessGrant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).
		Where("status IN ? AND valid_to <= ?",
			[]string{types.GrantStatusSynced, types.GrantStatusPendingSync, types.GrantStatusSyncFailed}, now)
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.AccessGrant
	if err := q.Order("valid_to ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListStuck returns the site's grants still waiting on a sync that started
// before olderThan and whose window is still open. Reconciliation turns these
// into alerts; a grant past its valid_to belongs to the expiry sweep instead.
func (r *accessGrantRepo) ListStuck(ctx context.Context, tx *gorm.DB, siteID uuid.UUID, olderThan, now time.Time) ([]*types.AccessGrant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.AccessGrant
	if err := transaction.WithContext(ctx).
		Where("site_id = ? AND status IN ? AND created_at < ? AND valid_to > ?",
			siteID, []string{types.GrantStatusPendingSync, types.GrantStatusSyncFailed}, olderThan, now).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *accessGrantRepo) ListSyncedBySite(ctx context.Context, tx *gorm.DB, siteID uuid.UUID) ([]*types.AccessGrant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.AccessGrant
	if err := transaction.WithContext(ctx).
		Where("site_id = ? AND status = ?", siteID, types.GrantStatusSynced).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListPendingVendorRevoke returns revoked grants whose vendor-side delete has
// not been confirmed yet. The sweep retries these until the vendor
// acknowledges, which keeps revocation at-least-once.
func (r *accessGrantRepo) ListPendingVendorRevoke(ctx context.Context, tx *gorm.DB, limit int) ([]*types.AccessGrant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).
		Where("status = ? AND vendor_ref != '' AND vendor_revoked = ?", types.GrantStatusRevoked, false)
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.AccessGrant
	if err := q.Order("revoked_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *accessGrantRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.AccessGrant{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// RevokeIfActive flips a non-revoked grant to REVOKED and records the reason.
// Returns false when the grant was already revoked, which keeps revocation
// idempotent.
func (r *accessGrantRepo) RevokeIfActive(ctx context.Context, tx *gorm.DB, id uuid.UUID, reason string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	res := transaction.WithContext(ctx).
		Model(&types.AccessGrant{}).
		Where("id = ? AND status != ?", id, types.GrantStatusRevoked).
		Updates(map[string]interface{}{
			"status":        types.GrantStatusRevoked,
			"revoked_at":    now,
			"revoke_reason": reason,
			"updated_at":    now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
