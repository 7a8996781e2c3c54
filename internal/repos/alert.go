package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/types"
)

type AlertFilter struct {
	SiteIDs  []uuid.UUID
	Type     string
	Status   string
	Priority string
	Limit    int
	Offset   int
}

type AlertRepo interface {
	CreateUnlessOpen(ctx context.Context, tx *gorm.DB, alert *types.Alert) (bool, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Alert, error)
	List(ctx context.Context, tx *gorm.DB, filter AlertFilter) ([]*types.Alert, int64, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type alertRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAlertRepo(db *gorm.DB, baseLog *logger.Logger) AlertRepo {
	return &alertRepo{db: db, log: baseLog.With("repo", "AlertRepo")}
}

// CreateUnlessOpen inserts the alert unless an unresolved one with the same
// dedup key exists. Keeps nightly sweeps from re-raising the same finding.
func (r *alertRepo) CreateUnlessOpen(ctx context.Context, tx *gorm.DB, alert *types.Alert) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var created bool
	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		if alert.DedupKey != "" {
			var count int64
			if err := txx.Model(&types.Alert{}).
				Where("dedup_key = ? AND status != ?", alert.DedupKey, types.AlertStatusResolved).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return nil
			}
		}
		if err := txx.Create(alert).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (r *alertRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Alert, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var a types.Alert
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&a).Error
	if err != nil {
		return nil, err
	}
	if a.ID == uuid.Nil {
		return nil, nil
	}
	return &a, nil
}

func (r *alertRepo) List(ctx context.Context, tx *gorm.DB, filter AlertFilter) ([]*types.Alert, int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).Model(&types.Alert{})
	if len(filter.SiteIDs) > 0 {
		q = q.Where("site_id IN ?", filter.SiteIDs)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		q = q.Where("priority = ?", filter.Priority)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}
	var out []*types.Alert
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *alertRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Alert{}).
		Where("id = ?", id).
		Updates(updates).Error
}
