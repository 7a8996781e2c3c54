package types

import (
	"time"

	"github.com/google/uuid"
)

type TrainingVideo struct {
	ID                   uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SiteID               uuid.UUID `gorm:"type:uuid;not null;index" json:"site_id"`
	Title                string    `gorm:"not null;column:title" json:"title"`
	FileURL              string    `gorm:"column:file_url" json:"file_url"`
	DurationSec          int       `gorm:"not null;column:duration_sec" json:"duration_sec"`
	RequiredWatchPercent float64   `gorm:"not null;default:0.95;column:required_watch_percent" json:"required_watch_percent"`
	IsActive             bool      `gorm:"not null;default:true;column:is_active" json:"is_active"`
	CreatedAt            time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt            time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (TrainingVideo) TableName() string { return "training_video" }
