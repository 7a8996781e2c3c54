package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/types"
)

type DailyTicketSnapshotRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.DailyTicketSnapshot) error
	ListByDailyTicket(ctx context.Context, tx *gorm.DB, dailyTicketID uuid.UUID, kind string) ([]*types.DailyTicketSnapshot, error)
}

type dailyTicketSnapshotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDailyTicketSnapshotRepo(db *gorm.DB, baseLog *logger.Logger) DailyTicketSnapshotRepo {
	return &dailyTicketSnapshotRepo{db: db, log: baseLog.With("repo", "DailyTicketSnapshotRepo")}
}

func (r *dailyTicketSnapshotRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.DailyTicketSnapshot) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Create(&rows).Error
}

func (r *dailyTicketSnapshotRepo) ListByDailyTicket(ctx context.Context, tx *gorm.DB, dailyTicketID uuid.UUID, kind string) ([]*types.DailyTicketSnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).Where("daily_ticket_id = ?", dailyTicketID)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var out []*types.DailyTicketSnapshot
	if err := q.Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
