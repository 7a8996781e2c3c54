package types

import (
	"time"

	"github.com/google/uuid"
)

// WorkArea is a physical zone guarded by access-control devices. The vendor
// addresses it through AccessGroupID.
type WorkArea struct {
	ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SiteID        uuid.UUID `gorm:"type:uuid;not null;index" json:"site_id"`
	Name          string    `gorm:"not null;column:name" json:"name"`
	AccessGroupID string    `gorm:"column:access_group_id" json:"access_group_id"`
	RiskLevel     string    `gorm:"column:risk_level" json:"risk_level"`
	IsActive      bool      `gorm:"not null;default:true;column:is_active" json:"is_active"`
	CreatedAt     time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (WorkArea) TableName() string { return "work_area" }
