package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventResultPass = "PASS"
	EventResultDeny = "DENY"

	EventDirectionIn  = "IN"
	EventDirectionOut = "OUT"
)

// Deny reason codes reported by (or resolved for) the vendor.
const (
	ReasonNotInTicket        = "NOT_IN_TICKET"
	ReasonTrainingIncomplete = "TRAINING_INCOMPLETE"
	ReasonOutOfTimeWindow    = "OUT_OF_TIME_WINDOW"
	ReasonAreaNotAllowed     = "AREA_NOT_ALLOWED"
	ReasonSyncPending        = "SYNC_PENDING"
	ReasonIdentityNotBound   = "IDENTITY_NOT_BOUND"
	ReasonDeviceError        = "DEVICE_ERROR"
)

// AccessEvent is an append-only vendor-reported pass/deny record. Dedup runs
// on VendorEventID when present, else on (device, worker, time, direction);
// DedupKey collapses both into one unique column.
type AccessEvent struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SiteID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"site_id"`
	VendorEventID string     `gorm:"column:vendor_event_id" json:"vendor_event_id,omitempty"`
	DedupKey      string     `gorm:"uniqueIndex;not null;column:dedup_key" json:"-"`
	DeviceID      string     `gorm:"not null;column:device_id" json:"device_id"`
	DeviceName    string     `gorm:"column:device_name" json:"device_name,omitempty"`
	WorkerID      *uuid.UUID `gorm:"type:uuid;column:worker_id;index" json:"worker_id,omitempty"`
	AreaID        *uuid.UUID `gorm:"type:uuid;column:area_id" json:"area_id,omitempty"`
	FaceID        string     `gorm:"column:face_id" json:"face_id,omitempty"`
	EventTime     time.Time  `gorm:"not null;column:event_time;index" json:"event_time"`
	Direction     string     `gorm:"column:direction" json:"direction,omitempty"`
	Result        string     `gorm:"not null;column:result" json:"result"`
	ReasonCode    string     `gorm:"column:reason_code" json:"reason_code,omitempty"`
	ReasonMessage string     `gorm:"column:reason_message" json:"reason_message,omitempty"`
	Confidence    *float64   `gorm:"column:confidence" json:"confidence,omitempty"`
	CreatedAt     time.Time  `gorm:"not null;default:now()" json:"created_at"`
}

func (AccessEvent) TableName() string { return "access_event" }
