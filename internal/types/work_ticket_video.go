package types

import (
	"time"

	"github.com/google/uuid"
)

// WorkTicketVideo joins a ticket to a mandated training video. Once ACTIVE a
// video can never move to REMOVED while its ticket is live; workers must not
// lose credit for something they already watched.
type WorkTicketVideo struct {
	ID                   uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TicketID             uuid.UUID  `gorm:"type:uuid;not null;index:idx_ticket_video,unique" json:"ticket_id"`
	VideoID              uuid.UUID  `gorm:"type:uuid;not null;index:idx_ticket_video,unique" json:"video_id"`
	SiteID               uuid.UUID  `gorm:"type:uuid;not null;index" json:"site_id"`
	RequiredWatchPercent float64    `gorm:"not null;default:0.95;column:required_watch_percent" json:"required_watch_percent"`
	Status               string     `gorm:"not null;default:'ACTIVE';column:status" json:"status"`
	AddedAt              time.Time  `gorm:"not null;column:added_at" json:"added_at"`
	AddedBy              uuid.UUID  `gorm:"type:uuid;column:added_by" json:"added_by"`
	RemovedAt            *time.Time `gorm:"column:removed_at" json:"removed_at,omitempty"`
	RemovedBy            *uuid.UUID `gorm:"type:uuid;column:removed_by" json:"removed_by,omitempty"`
	CreatedAt            time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (WorkTicketVideo) TableName() string { return "work_ticket_video" }
