package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	GrantStatusPendingSync = "PENDING_SYNC"
	GrantStatusSynced      = "SYNCED"
	GrantStatusSyncFailed  = "SYNC_FAILED"
	GrantStatusRevoked     = "REVOKED"
)

// Revoke reasons. REVOKED is terminal; once set the vendor is notified
// at-least-once and the row is never re-synced.
const (
	RevokeReasonTicketCancelled      = "TICKET_CANCELLED"
	RevokeReasonTicketClosed         = "TICKET_CLOSED"
	RevokeReasonDailyTicketCancelled = "DAILY_TICKET_CANCELLED"
	RevokeReasonWorkerRemoved        = "WORKER_REMOVED"
	RevokeReasonAreaRemoved          = "AREA_REMOVED"
	RevokeReasonTrainingReopened     = "TRAINING_REOPENED"
	RevokeReasonExpired              = "EXPIRED"
	RevokeReasonManual               = "MANUAL"
)

// AccessGrant is a time-boxed authorization for one worker at one area on one
// day, synchronized to the access-control vendor. The unique key makes
// issuance idempotent under races; the check constraint enforces
// valid_to > valid_from.
type AccessGrant struct {
	ID               uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DailyTicketID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_grant_key,unique" json:"daily_ticket_id"`
	WorkerID         uuid.UUID  `gorm:"type:uuid;not null;index:idx_grant_key,unique;index" json:"worker_id"`
	AreaID           uuid.UUID  `gorm:"type:uuid;not null;index:idx_grant_key,unique" json:"area_id"`
	SiteID           uuid.UUID  `gorm:"type:uuid;not null;index:idx_grant_site_status" json:"site_id"`
	ValidFrom        time.Time  `gorm:"not null;column:valid_from" json:"valid_from"`
	ValidTo          time.Time  `gorm:"not null;column:valid_to" json:"valid_to"`
	Status           string     `gorm:"not null;default:'PENDING_SYNC';column:status;index:idx_grant_site_status;index:idx_grant_status_created" json:"status"`
	SyncAttemptCount int        `gorm:"not null;default:0;column:sync_attempt_count" json:"sync_attempt_count"`
	LastSyncAt       *time.Time `gorm:"column:last_sync_at" json:"last_sync_at,omitempty"`
	SyncErrorMsg     string     `gorm:"type:text;column:sync_error_msg" json:"sync_error_msg,omitempty"`
	VendorRef        string     `gorm:"column:vendor_ref" json:"vendor_ref,omitempty"`
	RevokedAt        *time.Time `gorm:"column:revoked_at" json:"revoked_at,omitempty"`
	RevokeReason     string     `gorm:"column:revoke_reason" json:"revoke_reason,omitempty"`
	VendorRevoked    bool       `gorm:"not null;default:false;column:vendor_revoked" json:"vendor_revoked"`
	CreatedAt        time.Time  `gorm:"not null;default:now();index:idx_grant_status_created" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (AccessGrant) TableName() string { return "access_grant" }
