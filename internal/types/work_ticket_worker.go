package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	JoinStatusActive  = "ACTIVE"
	JoinStatusRemoved = "REMOVED"
)

// WorkTicketWorker is the soft-deletable join between a ticket and a worker.
// Removal never deletes the row; history stays queryable.
type WorkTicketWorker struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TicketID  uuid.UUID  `gorm:"type:uuid;not null;index:idx_ticket_worker,unique" json:"ticket_id"`
	WorkerID  uuid.UUID  `gorm:"type:uuid;not null;index:idx_ticket_worker,unique" json:"worker_id"`
	SiteID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"site_id"`
	Status    string     `gorm:"not null;default:'ACTIVE';column:status" json:"status"`
	AddedAt   time.Time  `gorm:"not null;column:added_at" json:"added_at"`
	AddedBy   uuid.UUID  `gorm:"type:uuid;column:added_by" json:"added_by"`
	RemovedAt *time.Time `gorm:"column:removed_at" json:"removed_at,omitempty"`
	RemovedBy *uuid.UUID `gorm:"type:uuid;column:removed_by" json:"removed_by,omitempty"`
	CreatedAt time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (WorkTicketWorker) TableName() string { return "work_ticket_worker" }
