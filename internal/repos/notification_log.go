package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/types"
)

type NotificationLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.NotificationLog) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.NotificationLog, error)
	ListByWorker(ctx context.Context, tx *gorm.DB, workerID uuid.UUID, limit, offset int) ([]*types.NotificationLog, int64, error)
	MarkRead(ctx context.Context, tx *gorm.DB, id, workerID uuid.UUID) (bool, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type notificationLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNotificationLogRepo(db *gorm.DB, baseLog *logger.Logger) NotificationLogRepo {
	return &notificationLogRepo{db: db, log: baseLog.With("repo", "NotificationLogRepo")}
}

func (r *notificationLogRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.NotificationLog) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Create(&rows).Error
}

func (r *notificationLogRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.NotificationLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var n types.NotificationLog
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&n).Error
	if err != nil {
		return nil, err
	}
	if n.ID == uuid.Nil {
		return nil, nil
	}
	return &n, nil
}

func (r *notificationLogRepo) ListByWorker(ctx context.Context, tx *gorm.DB, workerID uuid.UUID, limit, offset int) ([]*types.NotificationLog, int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).
		Model(&types.NotificationLog{}).
		Where("worker_id = ?", workerID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	var out []*types.NotificationLog
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *notificationLogRepo) MarkRead(ctx context.Context, tx *gorm.DB, id, workerID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	res := transaction.WithContext(ctx).
		Model(&types.NotificationLog{}).
		Where("id = ? AND worker_id = ? AND read_at IS NULL", id, workerID).
		Updates(map[string]interface{}{
			"read_at":    now,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *notificationLogRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.NotificationLog{}).
		Where("id = ?", id).
		Updates(updates).Error
}
