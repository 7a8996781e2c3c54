package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/types"
)

type TrainingVideoRepo interface {
	Create(ctx context.Context, tx *gorm.DB, videos []*types.TrainingVideo) ([]*types.TrainingVideo, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.TrainingVideo, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.TrainingVideo, error)
	ListBySite(ctx context.Context, tx *gorm.DB, siteID uuid.UUID) ([]*types.TrainingVideo, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type trainingVideoRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTrainingVideoRepo(db *gorm.DB, baseLog *logger.Logger) TrainingVideoRepo {
	return &trainingVideoRepo{db: db, log: baseLog.With("repo", "TrainingVideoRepo")}
}

func (r *trainingVideoRepo) Create(ctx context.Context, tx *gorm.DB, videos []*types.TrainingVideo) ([]*types.TrainingVideo, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(videos) == 0 {
		return []*types.TrainingVideo{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

func (r *trainingVideoRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.TrainingVideo, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var v types.TrainingVideo
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&v).Error
	if err != nil {
		return nil, err
	}
	if v.ID == uuid.Nil {
		return nil, nil
	}
	return &v, nil
}

func (r *trainingVideoRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.TrainingVideo, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.TrainingVideo
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *trainingVideoRepo) ListBySite(ctx context.Context, tx *gorm.DB, siteID uuid.UUID) ([]*types.TrainingVideo, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.TrainingVideo
	if err := transaction.WithContext(ctx).
		Where("site_id = ?", siteID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *trainingVideoRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.TrainingVideo{}).
		Where("id = ?", id).
		Updates(updates).Error
}
