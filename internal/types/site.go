package types

import (
	"time"

	"github.com/google/uuid"
)

// Site is the tenant root: one physical construction project with its own
// access-control devices and default policy windows. Wall-clock defaults are
// HH:MM:SS strings interpreted in the site's zone.
type Site struct {
	ID                      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name                    string    `gorm:"not null;column:name" json:"name"`
	Address                 string    `gorm:"column:address" json:"address"`
	Timezone                string    `gorm:"not null;default:'Asia/Shanghai';column:timezone" json:"timezone"`
	DefaultAccessStart      string    `gorm:"not null;default:'06:00:00';column:default_access_start" json:"default_access_start"`
	DefaultAccessEnd        string    `gorm:"not null;default:'20:00:00';column:default_access_end" json:"default_access_end"`
	DefaultTrainingDeadline string    `gorm:"not null;default:'09:00:00';column:default_training_deadline" json:"default_training_deadline"`
	IsActive                bool      `gorm:"not null;default:true;column:is_active" json:"is_active"`
	CreatedAt               time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt               time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Site) TableName() string { return "site" }

// Location resolves the site's IANA zone, falling back to UTC.
func (s *Site) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
