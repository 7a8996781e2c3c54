package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitepass/sitepass-backend/internal/logger"
	"github.com/sitepass/sitepass-backend/internal/types"
)

type WorkTicketFilter struct {
	SiteIDs []uuid.UUID
	Status  string
	Keyword string
	Limit   int
	Offset  int
}

type WorkTicketRepo interface {
	Create(ctx context.Context, tx *gorm.DB, tickets []*types.WorkTicket) ([]*types.WorkTicket, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.WorkTicket, error)
	List(ctx context.Context, tx *gorm.DB, filter WorkTicketFilter) ([]*types.WorkTicket, int64, error)
	ListActiveCovering(ctx context.Context, tx *gorm.DB, date time.Time) ([]*types.WorkTicket, error)
	ListActiveEndingBefore(ctx context.Context, tx *gorm.DB, date time.Time) ([]*types.WorkTicket, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type workTicketRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWorkTicketRepo(db *gorm.DB, baseLog *logger.Logger) WorkTicketRepo {
	return &workTicketRepo{db: db, log: baseLog.With("repo", "WorkTicketRepo")}
}

func (r *workTicketRepo) Create(ctx context.Context, tx *gorm.DB, tickets []*types.WorkTicket) ([]*types.WorkTicket, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(tickets) == 0 {
		return []*types.WorkTicket{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&tickets).Error; err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *workTicketRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.WorkTicket, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var t types.WorkTicket
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&t).Error
	if err != nil {
		return nil, err
	}
	if t.ID == uuid.Nil {
		return nil, nil
	}
	return &t, nil
}

func (r *workTicketRepo) List(ctx context.Context, tx *gorm.DB, filter WorkTicketFilter) ([]*types.WorkTicket, int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).Model(&types.WorkTicket{})
	if len(filter.SiteIDs) > 0 {
		q = q.Where("site_id IN ?", filter.SiteIDs)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Keyword != "" {
		q = q.Where("title LIKE ?", "%"+filter.Keyword+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}
	var out []*types.WorkTicket
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListActiveCovering returns ACTIVE tickets whose date range includes the
// given calendar date.
func (r *workTicketRepo) ListActiveCovering(ctx context.Context, tx *gorm.DB, date time.Time) ([]*types.WorkTicket, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	day := date.Format("2006-01-02")
	var out []*types.WorkTicket
	if err := transaction.WithContext(ctx).
		Where("status = ? AND start_date <= ? AND end_date >= ?", types.TicketStatusActive, day, day).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *workTicketRepo) ListActiveEndingBefore(ctx context.Context, tx *gorm.DB, date time.Time) ([]*types.WorkTicket, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	day := date.Format("2006-01-02")
	var out []*types.WorkTicket
	if err := transaction.WithContext(ctx).
		Where("status = ? AND end_date < ?", types.TicketStatusActive, day).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *workTicketRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.WorkTicket{}).
		Where("id = ?", id).
		Updates(updates).Error
}
