package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	TrainingStatusNotStarted = "NOT_STARTED"
	TrainingStatusInLearning = "IN_LEARNING"
	TrainingStatusCompleted  = "COMPLETED"
	TrainingStatusFailed     = "FAILED"
)

// DailyTicketWorker tracks one worker's training standing for one daily
// ticket. CompletedVideoCount never exceeds TotalVideoCount, and COMPLETED
// implies the two are equal.
type DailyTicketWorker struct {
	ID                  uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DailyTicketID       uuid.UUID  `gorm:"type:uuid;not null;index:idx_dtw_ticket_worker,unique" json:"daily_ticket_id"`
	WorkerID            uuid.UUID  `gorm:"type:uuid;not null;index:idx_dtw_ticket_worker,unique;index" json:"worker_id"`
	SiteID              uuid.UUID  `gorm:"type:uuid;not null;index" json:"site_id"`
	TotalVideoCount     int        `gorm:"not null;default:0;column:total_video_count" json:"total_video_count"`
	CompletedVideoCount int        `gorm:"not null;default:0;column:completed_video_count" json:"completed_video_count"`
	TrainingStatus      string     `gorm:"not null;default:'NOT_STARTED';column:training_status;index" json:"training_status"`
	Authorized          bool       `gorm:"not null;default:false;column:authorized" json:"authorized"`
	LastNotifyAt        *time.Time `gorm:"column:last_notify_at" json:"last_notify_at,omitempty"`
	NotifyCount         int        `gorm:"not null;default:0;column:notify_count" json:"notify_count"`
	Status              string     `gorm:"not null;default:'ACTIVE';column:status" json:"status"`
	CreatedAt           time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (DailyTicketWorker) TableName() string { return "daily_ticket_worker" }
