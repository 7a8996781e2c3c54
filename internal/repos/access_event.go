package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/types"
)

type AccessEventFilter struct {
	SiteIDs  []uuid.UUID
	WorkerID *uuid.UUID
	Result   string
	DateFrom string
	DateTo   string
	Limit    int
	Offset   int
}

type AccessEventRepo interface {
	CreateIgnoreConflict(ctx context.Context, tx *gorm.DB, ev *types.AccessEvent) (bool, error)
	List(ctx context.Context, tx *gorm.DB, filter AccessEventFilter) ([]*types.AccessEvent, int64, error)
}

type accessEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAccessEventRepo(db *gorm.DB, baseLog *logger.Logger) AccessEventRepo {
	return &accessEventRepo{db: db, log: baseLog.With("repo", "AccessEventRepo")}
}

// CreateIgnoreConflict inserts the event unless its dedup key already exists.
// Returns whether a row was inserted; a duplicate is acknowledged, not stored
// twice.
func (r *accessEventRepo) CreateIgnoreConflict(ctx context.Context, tx *gorm.DB, ev *types.AccessEvent) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(ev)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *accessEventRepo) List(ctx context.Context, tx *gorm.DB, filter AccessEventFilter) ([]*types.AccessEvent, int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).Model(&types.AccessEvent{})
	if len(filter.SiteIDs) > 0 {
		q = q.Where("site_id IN ?", filter.SiteIDs)
	}
	if filter.WorkerID != nil {
		q = q.Where("worker_id = ?", *filter.WorkerID)
	}
	if filter.Result != "" {
		q = q.Where("result = ?", filter.Result)
	}
	if filter.DateFrom != "" {
		q = q.Where("event_time >= ?", filter.DateFrom)
	}
	if filter.DateTo != "" {
		q = q.Where("event_time <= ?", filter.DateTo)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}
	var out []*types.AccessEvent
	if err := q.Order("event_time DESC").Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
