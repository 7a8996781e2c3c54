package types

import (
	"time"

	"github.com/google/uuid"
)

type WorkTicketArea struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TicketID  uuid.UUID  `gorm:"type:uuid;not null;index:idx_ticket_area,unique" json:"ticket_id"`
	AreaID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_ticket_area,unique" json:"area_id"`
	SiteID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"site_id"`
	Status    string     `gorm:"not null;default:'ACTIVE';column:status" json:"status"`
	AddedAt   time.Time  `gorm:"not null;column:added_at" json:"added_at"`
	AddedBy   uuid.UUID  `gorm:"type:uuid;column:added_by" json:"added_by"`
	RemovedAt *time.Time `gorm:"column:removed_at" json:"removed_at,omitempty"`
	RemovedBy *uuid.UUID `gorm:"type:uuid;column:removed_by" json:"removed_by,omitempty"`
	CreatedAt time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (WorkTicketArea) TableName() string { return "work_ticket_area" }
