package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	TicketStatusDraft     = "DRAFT"
	TicketStatusActive    = "ACTIVE"
	TicketStatusClosed    = "CLOSED"
	TicketStatusCancelled = "CANCELLED"
)

// WorkTicket is the operator-authored multi-day intent: who works where on
// which dates and what they must watch first. The runtime enforcement path
// never reads it directly; it reads the per-day materializations.
type WorkTicket struct {
	ID                      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SiteID                  uuid.UUID `gorm:"type:uuid;not null;index" json:"site_id"`
	ContractorID            uuid.UUID `gorm:"type:uuid;not null;index" json:"contractor_id"`
	Title                   string    `gorm:"not null;column:title" json:"title"`
	Remark                  string    `gorm:"column:remark" json:"remark"`
	StartDate               time.Time `gorm:"type:date;not null;column:start_date" json:"start_date"`
	EndDate                 time.Time `gorm:"type:date;not null;column:end_date" json:"end_date"`
	DefaultAccessStart      string    `gorm:"not null;column:default_access_start" json:"default_access_start"`
	DefaultAccessEnd        string    `gorm:"not null;column:default_access_end" json:"default_access_end"`
	DefaultTrainingDeadline string    `gorm:"not null;column:default_training_deadline" json:"default_training_deadline"`
	NotifyOnPublish         bool      `gorm:"not null;default:true;column:notify_on_publish" json:"notify_on_publish"`
	DailyReminderEnabled    bool      `gorm:"not null;default:true;column:daily_reminder_enabled" json:"daily_reminder_enabled"`
	Status                  string    `gorm:"not null;default:'DRAFT';column:status;index" json:"status"`
	CreatedBy               uuid.UUID `gorm:"type:uuid;column:created_by" json:"created_by"`
	CreatedAt               time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt               time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (WorkTicket) TableName() string { return "work_ticket" }
