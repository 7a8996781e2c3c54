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

type DailyTicketFilter struct {
	SiteIDs  []uuid.UUID
	TicketID *uuid.UUID
	Status   string
	DateFrom string
	DateTo   string
	Limit    int
	Offset   int
}

type DailyTicketRepo interface {
	CreateIgnoreConflict(ctx context.Context, tx *gorm.DB, dt *types.DailyTicket) (bool, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.DailyTicket, error)
	GetByTicketAndDate(ctx context.Context, tx *gorm.DB, ticketID uuid.UUID, date string) (*types.DailyTicket, error)
	List(ctx context.Context, tx *gorm.DB, filter DailyTicketFilter) ([]*types.DailyTicket, int64, error)
	ListByStatus(ctx context.Context, tx *gorm.DB, status string, date string) ([]*types.DailyTicket, error)
	ListOpenUnderTicket(ctx context.Context, tx *gorm.DB, ticketID uuid.UUID, fromDate string) ([]*types.DailyTicket, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	UpdateStatusIf(ctx context.Context, tx *gorm.DB, id uuid.UUID, fromStatuses []string, toStatus string) (bool, error)
}

type dailyTicketRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDailyTicketRepo(db *gorm.DB, baseLog *logger.Logger) DailyTicketRepo {
	return &dailyTicketRepo{db: db, log: baseLog.With("repo", "DailyTicketRepo")}
}

// CreateIgnoreConflict inserts the daily ticket unless one already exists for
// the same (ticket, date). Returns whether a row was actually inserted, which
// is what makes materialization idempotent.
func (r *dailyTicketRepo) CreateIgnoreConflict(ctx context.Context, tx *gorm.DB, dt *types.DailyTicket) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(dt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *dailyTicketRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.DailyTicket, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var dt types.DailyTicket
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&dt).Error
	if err != nil {
		return nil, err
	}
	if dt.ID == uuid.Nil {
		return nil, nil
	}
	return &dt, nil
}

// dayRange turns a "2006-01-02" date into the half-open [start, next) pair
// used for comparisons. Binding times instead of strings keeps the queries
// portable across the date column representations of postgres and sqlite.
func dayRange(date string) (time.Time, time.Time, bool) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return day, day.AddDate(0, 0, 1), true
}

func (r *dailyTicketRepo) GetByTicketAndDate(ctx context.Context, tx *gorm.DB, ticketID uuid.UUID, date string) (*types.DailyTicket, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).Where("ticket_id = ?", ticketID)
	if day, next, ok := dayRange(date); ok {
		q = q.Where("date >= ? AND date < ?", day, next)
	} else {
		q = q.Where("date = ?", date)
	}
	var dt types.DailyTicket
	err := q.Limit(1).
		Find(&dt).Error
	if err != nil {
		return nil, err
	}
	if dt.ID == uuid.Nil {
		return nil, nil
	}
	return &dt, nil
}

func (r *dailyTicketRepo) List(ctx context.Context, tx *gorm.DB, filter DailyTicketFilter) ([]*types.DailyTicket, int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).Model(&types.DailyTicket{})
	if len(filter.SiteIDs) > 0 {
		q = q.Where("site_id IN ?", filter.SiteIDs)
	}
	if filter.TicketID != nil {
		q = q.Where("ticket_id = ?", *filter.TicketID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.DateFrom != "" {
		if day, _, ok := dayRange(filter.DateFrom); ok {
			q = q.Where("date >= ?", day)
		} else {
			q = q.Where("date >= ?", filter.DateFrom)
		}
	}
	if filter.DateTo != "" {
		if _, next, ok := dayRange(filter.DateTo); ok {
			q = q.Where("date < ?", next)
		} else {
			q = q.Where("date <= ?", filter.DateTo)
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}
	var out []*types.DailyTicket
	if err := q.Order("date DESC, created_at DESC").Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *dailyTicketRepo) ListByStatus(ctx context.Context, tx *gorm.DB, status string, date string) ([]*types.DailyTicket, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).Where("status = ?", status)
	if date != "" {
		if day, next, ok := dayRange(date); ok {
			q = q.Where("date >= ? AND date < ?", day, next)
		} else {
			q = q.Where("date = ?", date)
		}
	}
	var out []*types.DailyTicket
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListOpenUnderTicket returns non-terminal daily tickets for a work ticket
// dated on or after fromDate. Used by compensation fan-out.
func (r *dailyTicketRepo) ListOpenUnderTicket(ctx context.Context, tx *gorm.DB, ticketID uuid.UUID, fromDate string) ([]*types.DailyTicket, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Where("status NOT IN ?", []string{
			types.DailyTicketStatusExpired,
			types.DailyTicketStatusClosed,
			types.DailyTicketStatusCancelled,
		})
	if fromDate != "" {
		if day, _, ok := dayRange(fromDate); ok {
			q = q.Where("date >= ?", day)
		} else {
			q = q.Where("date >= ?", fromDate)
		}
	}
	var out []*types.DailyTicket
	if err := q.Order("date ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *dailyTicketRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.DailyTicket{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateStatusIf performs a guarded status transition and reports whether the
// row actually moved. Losing the race is not an error.
func (r *dailyTicketRepo) UpdateStatusIf(ctx context.Context, tx *gorm.DB, id uuid.UUID, fromStatuses []string, toStatus string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.DailyTicket{}).
		Where("id = ? AND status IN ?", id, fromStatuses).
		Updates(map[string]interface{}{
			"status":     toStatus,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
