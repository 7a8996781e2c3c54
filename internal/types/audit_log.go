package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Audit actions. One row per attempted mutation, success or not.
const (
	AuditActionCreate      = "CREATE"
	AuditActionUpdate      = "UPDATE"
	AuditActionDelete      = "DELETE"
	AuditActionPublish     = "PUBLISH"
	AuditActionCancel      = "CANCEL"
	AuditActionClose       = "CLOSE"
	AuditActionAddWorker   = "ADD_WORKER"
	AuditActionRemove      = "REMOVE"
	AuditActionRevoke      = "REVOKE"
	AuditActionReopen      = "REOPEN"
	AuditActionAcknowledge = "ACKNOWLEDGE"
	AuditActionResolve     = "RESOLVE"
	AuditActionLogin       = "LOGIN"
)

// AuditLog is append-only. Old and New hold the affected resource before and
// after the change; for scoped edits they hold an AuditDiff instead of the
// whole row.
type AuditLog struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SiteID       *uuid.UUID     `gorm:"type:uuid;column:site_id;index" json:"site_id,omitempty"`
	OperatorID   *uuid.UUID     `gorm:"type:uuid;column:operator_id;index" json:"operator_id,omitempty"`
	OperatorName string         `gorm:"column:operator_name" json:"operator_name,omitempty"`
	Action       string         `gorm:"not null;column:action;index" json:"action"`
	ResourceType string         `gorm:"not null;column:resource_type;index:idx_audit_resource" json:"resource_type"`
	ResourceID   string         `gorm:"column:resource_id;index:idx_audit_resource" json:"resource_id,omitempty"`
	Old          datatypes.JSON `gorm:"type:jsonb;column:old_value" json:"old,omitempty"`
	New          datatypes.JSON `gorm:"type:jsonb;column:new_value" json:"new,omitempty"`
	Reason       string         `gorm:"type:text;column:reason" json:"reason,omitempty"`
	IP           string         `gorm:"column:ip" json:"ip,omitempty"`
	RequestID    string         `gorm:"column:request_id" json:"request_id,omitempty"`
	IsSuccess    bool           `gorm:"not null;default:true;column:is_success" json:"is_success"`
	ErrorMessage string         `gorm:"type:text;column:error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;default:now();index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_log" }

// IDRef names one entity touched by a scoped change.
type IDRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name,omitempty"`
}

// AuditDiff records what a scoped mutation added, removed or retimed without
// duplicating the full resource.
type AuditDiff struct {
	Added      []IDRef `json:"added,omitempty"`
	Removed    []IDRef `json:"removed,omitempty"`
	OldWindow  string  `json:"old_window,omitempty"`
	NewWindow  string  `json:"new_window,omitempty"`
	OldDeadline string `json:"old_deadline,omitempty"`
	NewDeadline string `json:"new_deadline,omitempty"`
}

func (d AuditDiff) JSON() datatypes.JSON {
	b, err := json.Marshal(d)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}
