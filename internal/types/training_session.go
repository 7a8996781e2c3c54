package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	SessionStatusNotStarted    = "NOT_STARTED"
	SessionStatusInLearning    = "IN_LEARNING"
	SessionStatusWaitingVerify = "WAITING_VERIFY"
	SessionStatusCompleted     = "COMPLETED"
	SessionStatusFailed        = "FAILED"
)

// Failure reasons recorded when a session transitions to FAILED.
const (
	FailureTooManySuspiciousEvents  = "TOO_MANY_SUSPICIOUS_EVENTS"
	FailureHeartbeatTimeout         = "HEARTBEAT_TIMEOUT"
	FailureConsecutiveCheckFailures = "CONSECUTIVE_CHECK_FAILURES"
)

// Video states reported by the client player.
const (
	VideoStatePlaying    = "playing"
	VideoStatePaused     = "paused"
	VideoStateBackground = "background"
	VideoStateUnknown    = "unknown"
)

// TrainingSession tracks one worker watching one video for one daily ticket.
// ValidWatchSec accumulates only heartbeat deltas that survive the anti-cheat
// rules; TotalWatchSec also counts skipped regions. COMPLETED and FAILED are
// sticky.
type TrainingSession struct {
	ID                       uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DailyTicketID            uuid.UUID  `gorm:"type:uuid;not null;index:idx_session_key,unique" json:"daily_ticket_id"`
	WorkerID                 uuid.UUID  `gorm:"type:uuid;not null;index:idx_session_key,unique" json:"worker_id"`
	VideoID                  uuid.UUID  `gorm:"type:uuid;not null;index:idx_session_key,unique" json:"video_id"`
	SiteID                   uuid.UUID  `gorm:"type:uuid;not null;index" json:"site_id"`
	Status                   string     `gorm:"not null;default:'NOT_STARTED';column:status;index" json:"status"`
	SessionToken             string     `gorm:"not null;column:session_token" json:"-"`
	StartedAt                *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	EndedAt                  *time.Time `gorm:"column:ended_at" json:"ended_at,omitempty"`
	ValidWatchSec            int        `gorm:"not null;default:0;column:valid_watch_sec" json:"valid_watch_sec"`
	TotalWatchSec            int        `gorm:"not null;default:0;column:total_watch_sec" json:"total_watch_sec"`
	LastPosition             int        `gorm:"not null;default:0;column:last_position" json:"last_position"`
	LastHeartbeatTs          *int64     `gorm:"column:last_heartbeat_ts" json:"last_heartbeat_ts,omitempty"`
	RandomCheckPassed        int        `gorm:"not null;default:0;column:random_check_passed" json:"random_check_passed"`
	RandomCheckFailed        int        `gorm:"not null;default:0;column:random_check_failed" json:"random_check_failed"`
	ConsecutiveCheckFailures int        `gorm:"not null;default:0;column:consecutive_check_failures" json:"consecutive_check_failures"`
	LastCheckAt              *time.Time `gorm:"column:last_check_at" json:"last_check_at,omitempty"`
	SuspiciousEventCount     int        `gorm:"not null;default:0;column:suspicious_event_count" json:"suspicious_event_count"`
	FailureReason            string     `gorm:"column:failure_reason" json:"failure_reason,omitempty"`
	VideoState               string     `gorm:"not null;default:'unknown';column:video_state" json:"video_state"`
	CreatedAt                time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt                time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (TrainingSession) TableName() string { return "training_session" }

// IsTerminal reports whether the session reached a sticky state.
func (s *TrainingSession) IsTerminal() bool {
	return s.Status == SessionStatusCompleted || s.Status == SessionStatusFailed
}
