package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/types"
)

type WorkAreaRepo interface {
	Create(ctx context.Context, tx *gorm.DB, areas []*types.WorkArea) ([]*types.WorkArea, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.WorkArea, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.WorkArea, error)
	ListBySite(ctx context.Context, tx *gorm.DB, siteID uuid.UUID) ([]*types.WorkArea, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type workAreaRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWorkAreaRepo(db *gorm.DB, baseLog *logger.Logger) WorkAreaRepo {
	return &workAreaRepo{db: db, log: baseLog.With("repo", "WorkAreaRepo")}
}

func (r *workAreaRepo) Create(ctx context.Context, tx *gorm.DB, areas []*types.WorkArea) ([]*types.WorkArea, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(areas) == 0 {
		return []*types.WorkArea{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&areas).Error; err != nil {
		return nil, err
	}
	return areas, nil
}

func (r *workAreaRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.WorkArea, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var a types.WorkArea
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

func (r *workAreaRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.WorkArea, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.WorkArea
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

func (r *workAreaRepo) ListBySite(ctx context.Context, tx *gorm.DB, siteID uuid.UUID) ([]*types.WorkArea, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.WorkArea
	if err := transaction.WithContext(ctx).
		Where("site_id = ?", siteID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *workAreaRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.WorkArea{}).
		Where("id = ?", id).
		Updates(updates).Error
}
