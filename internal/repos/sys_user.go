package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/types"
)

type SysUserRepo interface {
	Create(ctx context.Context, tx *gorm.DB, users []*types.SysUser) ([]*types.SysUser, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.SysUser, error)
	GetByUsername(ctx context.Context, tx *gorm.DB, username string) (*types.SysUser, error)
	UsernameExists(ctx context.Context, tx *gorm.DB, username string) (bool, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type sysUserRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSysUserRepo(db *gorm.DB, baseLog *logger.Logger) SysUserRepo {
	return &sysUserRepo{db: db, log: baseLog.With("repo", "SysUserRepo")}
}

func (r *sysUserRepo) Create(ctx context.Context, tx *gorm.DB, users []*types.SysUser) ([]*types.SysUser, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(users) == 0 {
		return []*types.SysUser{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *sysUserRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.SysUser, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var u types.SysUser
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&u).Error
	if err != nil {
		return nil, err
	}
	if u.ID == uuid.Nil {
		return nil, nil
	}
	return &u, nil
}

func (r *sysUserRepo) GetByUsername(ctx context.Context, tx *gorm.DB, username string) (*types.SysUser, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if username == "" {
		return nil, nil
	}
	var u types.SysUser
	err := transaction.WithContext(ctx).
		Where("username = ?", username).
		Limit(1).
		Find(&u).Error
	if err != nil {
		return nil, err
	}
	if u.ID == uuid.Nil {
		return nil, nil
	}
	return &u, nil
}

func (r *sysUserRepo) UsernameExists(ctx context.Context, tx *gorm.DB, username string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.SysUser{}).
		Where("username = ?", username).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *sysUserRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.SysUser{}).
		Where("id = ?", id).
		Updates(updates).Error
}
