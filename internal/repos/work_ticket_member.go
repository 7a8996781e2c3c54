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

// WorkTicketMemberRepo manages the worker, area and video rows attached to a
// work ticket. Workers and areas are soft-removed (status flips to REMOVED);
// video rows are append-only.
type WorkTicketMemberRepo interface {
	AddWorkers(ctx context.Context, tx *gorm.DB, rows []*types.WorkTicketWorker) error
	AddAreas(ctx context.Context, tx *gorm.DB, rows []*types.WorkTicketArea) error
	AddVideos(ctx context.Context, tx *gorm.DB, rows []*types.WorkTicketVideo) error
	ListActiveWorkers(ctx context.Context, tx *gorm.DB, ticketID uuid.UUID) ([]*types.WorkTicketWorker, error)
	ListActiveAreas(ctx context.Context, tx *gorm.DB, ticketID uuid.UUID) ([]*types.WorkTicketArea, error)
	ListVideos(ctx context.Context, tx *gorm.DB, ticketID uuid.UUID) ([]*types.WorkTicketVideo, error)
	RemoveWorker(ctx context.Context, tx *gorm.DB, ticketID, workerID, removedBy uuid.UUID) (bool, error)
	RemoveArea(ctx context.Context, tx *gorm.DB, ticketID, areaID, removedBy uuid.UUID) (bool, error)
	ReactivateWorker(ctx context.Context, tx *gorm.DB, ticketID, workerID, addedBy uuid.UUID) (bool, error)
}

type workTicketMemberRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWorkTicketMemberRepo(db *gorm.DB, baseLog *logger.Logger) WorkTicketMemberRepo {
	return &workTicketMemberRepo{db: db, log: baseLog.With("repo", "WorkTicketMemberRepo")}
}

func (r *workTicketMemberRepo) AddWorkers(ctx context.Context, tx *gorm.DB, rows []*types.WorkTicketWorker) error {
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

func (r *workTicketMemberRepo) AddAreas(ctx context.Context, tx *gorm.DB, rows []*types.WorkTicketArea) error {
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

func (r *workTicketMemberRepo) AddVideos(ctx context.Context, tx *gorm.DB, rows []*types.WorkTicketVideo) error {
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

func (r *workTicketMemberRepo) ListActiveWorkers(ctx context.Context, tx *gorm.DB, ticketID uuid.UUID) ([]*types.WorkTicketWorker, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.WorkTicketWorker
	if err := transaction.WithContext(ctx).
		Where("ticket_id = ? AND status = ?", ticketID, types.JoinStatusActive).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *workTicketMemberRepo) ListActiveAreas(ctx context.Context, tx *gorm.DB, ticketID uuid.UUID) ([]*types.WorkTicketArea, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.WorkTicketArea
	if err := transaction.WithContext(ctx).
		Where("ticket_id = ? AND status = ?", ticketID, types.JoinStatusActive).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *workTicketMemberRepo) ListVideos(ctx context.Context, tx *gorm.DB, ticketID uuid.UUID) ([]*types.WorkTicketVideo, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.WorkTicketVideo
	if err := transaction.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *workTicketMemberRepo) RemoveWorker(ctx context.Context, tx *gorm.DB, ticketID, workerID, removedBy uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	res := transaction.WithContext(ctx).
		Model(&types.WorkTicketWorker{}).
		Where("ticket_id = ? AND worker_id = ? AND status = ?", ticketID, workerID, types.JoinStatusActive).
		Updates(map[string]interface{}{
			"status":     types.JoinStatusRemoved,
			"removed_at": now,
			"removed_by": removedBy,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *workTicketMemberRepo) RemoveArea(ctx context.Context, tx *gorm.DB, ticketID, areaID, removedBy uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	res := transaction.WithContext(ctx).
		Model(&types.WorkTicketArea{}).
		Where("ticket_id = ? AND area_id = ? AND status = ?", ticketID, areaID, types.JoinStatusActive).
		Updates(map[string]interface{}{
			"status":     types.JoinStatusRemoved,
			"removed_at": now,
			"removed_by": removedBy,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ReactivateWorker flips a previously REMOVED row back to ACTIVE, keeping the
// unique (ticket, worker) key satisfied when a worker is re-added.
func (r *workTicketMemberRepo) ReactivateWorker(ctx context.Context, tx *gorm.DB, ticketID, workerID, addedBy uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	res := transaction.WithContext(ctx).
		Model(&types.WorkTicketWorker{}).
		Where("ticket_id = ? AND worker_id = ? AND status = ?", ticketID, workerID, types.JoinStatusRemoved).
		Updates(map[string]interface{}{
			"status":     types.JoinStatusActive,
			"added_at":   now,
			"added_by":   addedBy,
			"removed_at": nil,
			"removed_by": nil,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
