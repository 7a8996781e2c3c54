package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	NotifyStatusPending = "PENDING"
	NotifyStatusSent    = "SENT"
	NotifyStatusFailed  = "FAILED"
)

// Notification kinds, also used as template names.
const (
	NotifyKindTrainingTask     = "TRAINING_TASK"
	NotifyKindTrainingReminder = "TRAINING_REMINDER"
	NotifyKindDeadlineSoon     = "DEADLINE_SOON"
	NotifyKindTrainingFailed   = "TRAINING_FAILED"
	NotifyKindAccessGranted    = "ACCESS_GRANTED"
	NotifyKindAccessRevoked    = "ACCESS_REVOKED"
	NotifyKindAlert            = "ALERT"
)

// Priorities. 1 is the most urgent and bypasses quiet hours.
const (
	NotifyPriorityUrgent = 1
	NotifyPriorityHigh   = 2
	NotifyPriorityNormal = 3
	NotifyPriorityLow    = 4
)

// NotificationLog records every push attempt, including mock-mode sends.
type NotificationLog struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SiteID       *uuid.UUID     `gorm:"type:uuid;column:site_id;index" json:"site_id,omitempty"`
	WorkerID     *uuid.UUID     `gorm:"type:uuid;column:worker_id;index" json:"worker_id,omitempty"`
	UserID       *uuid.UUID     `gorm:"type:uuid;column:user_id;index" json:"user_id,omitempty"`
	Kind         string         `gorm:"not null;column:kind;index" json:"kind"`
	Priority     int            `gorm:"not null;default:3;column:priority" json:"priority"`
	Channel      string         `gorm:"not null;default:'wechat';column:channel" json:"channel"`
	Title        string         `gorm:"not null;column:title" json:"title"`
	Body         string         `gorm:"type:text;column:body" json:"body,omitempty"`
	Payload      datatypes.JSON `gorm:"type:jsonb;column:payload" json:"payload,omitempty"`
	DedupKey     string         `gorm:"column:dedup_key;index" json:"-"`
	Status       string         `gorm:"not null;default:'PENDING';column:status;index" json:"status"`
	AttemptCount int            `gorm:"not null;default:0;column:attempt_count" json:"attempt_count"`
	LastError    string         `gorm:"type:text;column:last_error" json:"last_error,omitempty"`
	SentAt       *time.Time     `gorm:"column:sent_at" json:"sent_at,omitempty"`
	ReadAt       *time.Time     `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (NotificationLog) TableName() string { return "notification_log" }
