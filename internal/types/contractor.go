package types

import (
	"time"

	"github.com/google/uuid"
)

type Contractor struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SiteID    uuid.UUID `gorm:"type:uuid;not null;index" json:"site_id"`
	Name      string    `gorm:"not null;column:name" json:"name"`
	Contact   string    `gorm:"column:contact" json:"contact"`
	Phone     string    `gorm:"column:phone" json:"phone"`
	IsActive  bool      `gorm:"not null;default:true;column:is_active" json:"is_active"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Contractor) TableName() string { return "contractor" }
