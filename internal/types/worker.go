package types

import (
	"time"

	"github.com/google/uuid"
)

// Worker is a realname-registered person eligible to appear on work tickets.
// FaceID and WechatOpenID are bound by the onboarding flow; both may be empty
// until the worker completes binding.
type Worker struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SiteID       uuid.UUID `gorm:"type:uuid;not null;index" json:"site_id"`
	ContractorID uuid.UUID `gorm:"type:uuid;not null;index" json:"contractor_id"`
	Name         string    `gorm:"not null;column:name" json:"name"`
	IDNo         string    `gorm:"not null;column:id_no;index" json:"id_no"`
	Phone        string    `gorm:"column:phone" json:"phone"`
	JobType      string    `gorm:"column:job_type" json:"job_type"`
	FaceID       string    `gorm:"column:face_id;index" json:"face_id"`
	WechatOpenID string    `gorm:"column:wechat_open_id" json:"wechat_open_id"`
	IsBound      bool      `gorm:"not null;default:false;column:is_bound" json:"is_bound"`
	IsActive     bool      `gorm:"not null;default:true;column:is_active" json:"is_active"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Worker) TableName() string { return "worker" }
