package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/types"
)

type SiteRepo interface {
	Create(ctx context.Context, tx *gorm.DB, sites []*types.Site) ([]*types.Site, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Site, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Site, error)
	ListActive(ctx context.Context, tx *gorm.DB) ([]*types.Site, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type siteRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSiteRepo(db *gorm.DB, baseLog *logger.Logger) SiteRepo {
	return &siteRepo{db: db, log: baseLog.With("repo", "SiteRepo")}
}

func (r *siteRepo) Create(ctx context.Context, tx *gorm.DB, sites []*types.Site) ([]*types.Site, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(sites) == 0 {
		return []*types.Site{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&sites).Error; err != nil {
		return nil, err
	}
	return sites, nil
}

func (r *siteRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Site, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var site types.Site
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&site).Error
	if err != nil {
		return nil, err
	}
	if site.ID == uuid.Nil {
		return nil, nil
	}
	return &site, nil
}

func (r *siteRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Site, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Site
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

func (r *siteRepo) ListActive(ctx context.Context, tx *gorm.DB) ([]*types.Site, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Site
	if err := transaction.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *siteRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Site{}).
		Where("id = ?", id).
		Updates(updates).Error
}
