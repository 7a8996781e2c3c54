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

type DailyTicketWorkerRepo interface {
	CreateIgnoreConflicts(ctx context.Context, tx *gorm.DB, rows []*types.DailyTicketWorker) error
	Get(ctx context.Context, tx *gorm.DB, dailyTicketID, workerID uuid.UUID) (*types.DailyTicketWorker, error)
	ListByDailyTicket(ctx context.Context, tx *gorm.DB, dailyTicketID uuid.UUID) ([]*types.DailyTicketWorker, error)
	ListByWorker(ctx context.Context, tx *gorm.DB, workerID uuid.UUID, dailyTicketIDs []uuid.UUID) ([]*types.DailyTicketWorker, error)
	ListPendingTraining(ctx context.Context, tx *gorm.DB, dailyTicketID uuid.UUID, trainingStatuses []string) ([]*types.DailyTicketWorker, error)
	CountByTrainingStatus(ctx context.Context, tx *gorm.DB, dailyTicketID uuid.UUID) (map[string]int64, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type dailyTicketWorkerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDailyTicketWorkerRepo(db *gorm.DB, baseLog *logger.Logger) DailyTicketWorkerRepo {
	return &dailyTicketWorkerRepo{db: db, log: baseLog.With("repo", "DailyTicketWorkerRepo")}
}

func (r *dailyTicketWorkerRepo) CreateIgnoreConflicts(ctx context.Context, tx *gorm.DB, rows []*types.DailyTicketWorker) error {
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

func (r *dailyTicketWorkerRepo) Get(ctx context.Context, tx *gorm.DB, dailyTicketID, workerID uuid.UUID) (*types.DailyTicketWorker, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.DailyTicketWorker
	err := transaction.WithContext(ctx).
		Where("daily_ticket_id = ? AND worker_id = ?", dailyTicketID, workerID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *dailyTicketWorkerRepo) ListByDailyTicket(ctx context.Context, tx *gorm.DB, dailyTicketID uuid.UUID) ([]*types.DailyTicketWorker, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.DailyTicketWorker
	if err := transaction.WithContext(ctx).
		Where("daily_ticket_id = ?", dailyTicketID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *dailyTicketWorkerRepo) ListByWorker(ctx context.Context, tx *gorm.DB, workerID uuid.UUID, dailyTicketIDs []uuid.UUID) ([]*types.DailyTicketWorker, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).Where("worker_id = ?", workerID)
	if len(dailyTicketIDs) > 0 {
		q = q.Where("daily_ticket_id IN ?", dailyTicketIDs)
	}
	var out []*types.DailyTicketWorker
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListPendingTraining returns active workers in the given training states.
// The 05:30 reminder targets NOT_STARTED only; the deadline sweep also picks
// up IN_LEARNING. An empty filter means both.
func (r *dailyTicketWorkerRepo) ListPendingTraining(ctx context.Context, tx *gorm.DB, dailyTicketID uuid.UUID, trainingStatuses []string) ([]*types.DailyTicketWorker, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(trainingStatuses) == 0 {
		trainingStatuses = []string{types.TrainingStatusNotStarted, types.TrainingStatusInLearning}
	}
	var out []*types.DailyTicketWorker
	if err := transaction.WithContext(ctx).
		Where("daily_ticket_id = ? AND status = ? AND training_status IN ?",
			dailyTicketID, "ACTIVE", trainingStatuses).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *dailyTicketWorkerRepo) CountByTrainingStatus(ctx context.Context, tx *gorm.DB, dailyTicketID uuid.UUID) (map[string]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	type statusCount struct {
		TrainingStatus string
		N              int64
	}
	var rows []statusCount
	if err := transaction.WithContext(ctx).
		Model(&types.DailyTicketWorker{}).
		Select("training_status, COUNT(*) AS n").
		Where("daily_ticket_id = ? AND status = ?", dailyTicketID, "ACTIVE").
		Group("training_status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.TrainingStatus] = row.N
	}
	return out, nil
}

func (r *dailyTicketWorkerRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.DailyTicketWorker{}).
		Where("id = ?", id).
		Updates(updates).Error
}
