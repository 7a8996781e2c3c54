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

type TrainingSessionRepo interface {
	CreateIgnoreConflict(ctx context.Context, tx *gorm.DB, s *types.TrainingSession) (bool, error)
	Get(ctx context.Context, tx *gorm.DB, dailyTicketID, workerID, videoID uuid.UUID) (*types.TrainingSession, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.TrainingSession, error)
	ListByWorker(ctx context.Context, tx *gorm.DB, dailyTicketID, workerID uuid.UUID) ([]*types.TrainingSession, error)
	ListStaleHeartbeats(ctx context.Context, tx *gorm.DB, cutoffUnix int64, limit int) ([]*types.TrainingSession, error)
	ListPendingChecks(ctx context.Context, tx *gorm.DB, checkDueBefore time.Time, limit int) ([]*types.TrainingSession, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type trainingSessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTrainingSessionRepo(db *gorm.DB, baseLog *logger.Logger) TrainingSessionRepo {
	return &trainingSessionRepo{db: db, log: baseLog.With("repo", "TrainingSessionRepo")}
}

func (r *trainingSessionRepo) CreateIgnoreConflict(ctx context.Context, tx *gorm.DB, s *types.TrainingSession) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(s)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *trainingSessionRepo) Get(ctx context.Context, tx *gorm.DB, dailyTicketID, workerID, videoID uuid.UUID) (*types.TrainingSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var s types.TrainingSession
	err := transaction.WithContext(ctx).
		Where("daily_ticket_id = ? AND worker_id = ? AND video_id = ?", dailyTicketID, workerID, videoID).
		Limit(1).
		Find(&s).Error
	if err != nil {
		return nil, err
	}
	if s.ID == uuid.Nil {
		return nil, nil
	}
	return &s, nil
}

func (r *trainingSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.TrainingSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var s types.TrainingSession
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&s).Error
	if err != nil {
		return nil, err
	}
	if s.ID == uuid.Nil {
		return nil, nil
	}
	return &s, nil
}

func (r *trainingSessionRepo) ListByWorker(ctx context.Context, tx *gorm.DB, dailyTicketID, workerID uuid.UUID) ([]*types.TrainingSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.TrainingSession
	if err := transaction.WithContext(ctx).
		Where("daily_ticket_id = ? AND worker_id = ?", dailyTicketID, workerID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListStaleHeartbeats returns IN_LEARNING sessions whose last heartbeat is
// older than the cutoff. The heartbeat sweep decides between pause and fail.
func (r *trainingSessionRepo) ListStaleHeartbeats(ctx context.Context, tx *gorm.DB, cutoffUnix int64, limit int) ([]*types.TrainingSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).
		Where("status = ? AND last_heartbeat_ts IS NOT NULL AND last_heartbeat_ts < ?",
			types.SessionStatusInLearning, cutoffUnix)
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.TrainingSession
	if err := q.Order("last_heartbeat_ts ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListPendingChecks returns IN_LEARNING sessions due for a random presence
// check.
func (r *trainingSessionRepo) ListPendingChecks(ctx context.Context, tx *gorm.DB, checkDueBefore time.Time, limit int) ([]*types.TrainingSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).
		Where("status = ? AND video_state = ?", types.SessionStatusInLearning, types.VideoStatePlaying).
		Where("last_check_at IS NULL OR last_check_at < ?", checkDueBefore)
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.TrainingSession
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *trainingSessionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.TrainingSession{}).
		Where("id = ?", id).
		Updates(updates).Error
}
