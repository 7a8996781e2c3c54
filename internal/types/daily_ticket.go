package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	DailyTicketStatusDraft      = "DRAFT"
	DailyTicketStatusPublished  = "PUBLISHED"
	DailyTicketStatusInProgress = "IN_PROGRESS"
	DailyTicketStatusExpired    = "EXPIRED"
	DailyTicketStatusClosed     = "CLOSED"
	DailyTicketStatusCancelled  = "CANCELLED"
)

// DailyTicket is the per-day materialization of a work ticket and the unit the
// runtime enforcement path operates on. Window times are copied from the
// ticket defaults at materialization and editable independently afterwards.
// Lifecycle is forward-only; CANCELLED and CLOSED are terminal.
type DailyTicket struct {
	ID               uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TicketID         uuid.UUID `gorm:"type:uuid;not null;index:idx_daily_ticket_date,unique" json:"ticket_id"`
	SiteID           uuid.UUID `gorm:"type:uuid;not null;index" json:"site_id"`
	Date             time.Time `gorm:"type:date;not null;index:idx_daily_ticket_date,unique;index:idx_daily_date_status" json:"date"`
	AccessStart      string    `gorm:"not null;column:access_start" json:"access_start"`
	AccessEnd        string    `gorm:"not null;column:access_end" json:"access_end"`
	TrainingDeadline string    `gorm:"not null;column:training_deadline" json:"training_deadline"`
	Status           string    `gorm:"not null;default:'PUBLISHED';column:status;index:idx_daily_date_status" json:"status"`
	CreatedAt        time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (DailyTicket) TableName() string { return "daily_ticket" }

// IsTerminal reports whether no further lifecycle transition is allowed.
func (d *DailyTicket) IsTerminal() bool {
	switch d.Status {
	case DailyTicketStatusExpired, DailyTicketStatusClosed, DailyTicketStatusCancelled:
		return true
	}
	return false
}
