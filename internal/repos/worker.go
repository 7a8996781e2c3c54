package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/types"
)

// WorkerFilter narrows List queries. Zero values mean "no restriction".
type WorkerFilter struct {
	ContractorID *uuid.UUID
	JobType      string
	Keyword      string
	BoundOnly    bool
	Limit        int
	Offset       int
}

type WorkerRepo interface {
	Create(ctx context.Context, tx *gorm.DB, workers []*types.Worker) ([]*types.Worker, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Worker, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Worker, error)
	GetByIDNo(ctx context.Context, tx *gorm.DB, idNo string) (*types.Worker, error)
	GetByWechatOpenID(ctx context.Context, tx *gorm.DB, openID string) (*types.Worker, error)
	GetByFaceID(ctx context.Context, tx *gorm.DB, faceID string) (*types.Worker, error)
	List(ctx context.Context, tx *gorm.DB, filter WorkerFilter) ([]*types.Worker, int64, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type workerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWorkerRepo(db *gorm.DB, baseLog *logger.Logger) WorkerRepo {
	return &workerRepo{db: db, log: baseLog.With("repo", "WorkerRepo")}
}

func (r *workerRepo) Create(ctx context.Context, tx *gorm.DB, workers []*types.Worker) ([]*types.Worker, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(workers) == 0 {
		return []*types.Worker{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&workers).Error; err != nil {
		return nil, err
	}
	return workers, nil
}

func (r *workerRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Worker, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var w types.Worker
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&w).Error
	if err != nil {
		return nil, err
	}
	if w.ID == uuid.Nil {
		return nil, nil
	}
	return &w, nil
}

func (r *workerRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Worker, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Worker
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

func (r *workerRepo) GetByIDNo(ctx context.Context, tx *gorm.DB, idNo string) (*types.Worker, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if idNo == "" {
		return nil, nil
	}
	var w types.Worker
	err := transaction.WithContext(ctx).
		Where("id_no = ?", idNo).
		Limit(1).
		Find(&w).Error
	if err != nil {
		return nil, err
	}
	if w.ID == uuid.Nil {
		return nil, nil
	}
	return &w, nil
}

func (r *workerRepo) GetByWechatOpenID(ctx context.Context, tx *gorm.DB, openID string) (*types.Worker, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if openID == "" {
		return nil, nil
	}
	var w types.Worker
	err := transaction.WithContext(ctx).
		Where("wechat_open_id = ?", openID).
		Limit(1).
		Find(&w).Error
	if err != nil {
		return nil, err
	}
	if w.ID == uuid.Nil {
		return nil, nil
	}
	return &w, nil
}

func (r *workerRepo) GetByFaceID(ctx context.Context, tx *gorm.DB, faceID string) (*types.Worker, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if faceID == "" {
		return nil, nil
	}
	var w types.Worker
	err := transaction.WithContext(ctx).
		Where("face_id = ?", faceID).
		Limit(1).
		Find(&w).Error
	if err != nil {
		return nil, err
	}
	if w.ID == uuid.Nil {
		return nil, nil
	}
	return &w, nil
}

func (r *workerRepo) List(ctx context.Context, tx *gorm.DB, filter WorkerFilter) ([]*types.Worker, int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).Model(&types.Worker{})
	if filter.ContractorID != nil {
		q = q.Where("contractor_id = ?", *filter.ContractorID)
	}
	if filter.JobType != "" {
		q = q.Where("job_type = ?", filter.JobType)
	}
	if filter.Keyword != "" {
		kw := "%" + filter.Keyword + "%"
		q = q.Where("name LIKE ? OR phone LIKE ? OR id_no LIKE ?", kw, kw, kw)
	}
	if filter.BoundOnly {
		q = q.Where("is_bound = ?", true)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}
	var out []*types.Worker
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *workerRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Worker{}).
		Where("id = ?", id).
		Updates(updates).Error
}
