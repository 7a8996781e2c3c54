package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/types"
)

type ContractorRepo interface {
	Create(ctx context.Context, tx *gorm.DB, contractors []*types.Contractor) ([]*types.Contractor, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Contractor, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.Contractor, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type contractorRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContractorRepo(db *gorm.DB, baseLog *logger.Logger) ContractorRepo {
	return &contractorRepo{db: db, log: baseLog.With("repo", "ContractorRepo")}
}

func (r *contractorRepo) Create(ctx context.Context, tx *gorm.DB, contractors []*types.Contractor) ([]*types.Contractor, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(contractors) == 0 {
		return []*types.Contractor{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&contractors).Error; err != nil {
		return nil, err
	}
	return contractors, nil
}

func (r *contractorRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Contractor, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var c types.Contractor
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == uuid.Nil {
		return nil, nil
	}
	return &c, nil
}

func (r *contractorRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Contractor, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Contractor
	if err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *contractorRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Contractor{}).
		Where("id = ?", id).
		Updates(updates).Error
}
