package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	AlertTypeSyncStuck        = "SYNC_STUCK"
	AlertTypeAccessMismatch   = "ACCESS_MISMATCH"
	AlertTypeServiceUnhealthy = "SERVICE_UNHEALTHY"
)

const (
	AlertPriorityHigh   = "HIGH"
	AlertPriorityMedium = "MEDIUM"
	AlertPriorityLow    = "LOW"
)

const (
	AlertStatusUnacknowledged = "UNACKNOWLEDGED"
	AlertStatusAcknowledged   = "ACKNOWLEDGED"
	AlertStatusResolved       = "RESOLVED"
)

// Alert is an operator-facing finding raised by reconciliation or health
// checks. Alerts describe problems; they never auto-heal them.
type Alert struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SiteID         *uuid.UUID     `gorm:"type:uuid;column:site_id;index" json:"site_id,omitempty"`
	Type           string         `gorm:"not null;column:type;index" json:"type"`
	Priority       string         `gorm:"not null;column:priority" json:"priority"`
	Status         string         `gorm:"not null;default:'UNACKNOWLEDGED';column:status;index" json:"status"`
	Title          string         `gorm:"not null;column:title" json:"title"`
	Details        datatypes.JSON `gorm:"type:jsonb;column:details" json:"details,omitempty"`
	DedupKey       string         `gorm:"column:dedup_key;index" json:"-"`
	AcknowledgedBy *uuid.UUID     `gorm:"type:uuid;column:acknowledged_by" json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time     `gorm:"column:acknowledged_at" json:"acknowledged_at,omitempty"`
	ResolvedBy     *uuid.UUID     `gorm:"type:uuid;column:resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time     `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Alert) TableName() string { return "alert" }
