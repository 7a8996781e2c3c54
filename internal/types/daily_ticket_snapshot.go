package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	SnapshotKindWorker = "WORKER"
	SnapshotKindArea   = "AREA"
	SnapshotKindVideo  = "VIDEO"
)

// DailyTicketSnapshot freezes a participant's identity and essential
// attributes at materialization time. Rows are append-only and are the source
// of truth for historical display; later edits to the reference rows never
// touch them.
type DailyTicketSnapshot struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DailyTicketID uuid.UUID      `gorm:"type:uuid;not null;index" json:"daily_ticket_id"`
	SiteID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"site_id"`
	Kind          string         `gorm:"not null;column:kind" json:"kind"`
	EntityID      uuid.UUID      `gorm:"type:uuid;not null;column:entity_id" json:"entity_id"`
	EntityName    string         `gorm:"column:entity_name" json:"entity_name"`
	Meta          datatypes.JSON `gorm:"type:jsonb;column:meta" json:"meta"`
	CreatedAt     time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (DailyTicketSnapshot) TableName() string { return "daily_ticket_snapshot" }

// WorkerMeta, AreaMeta and VideoMeta are the typed variants behind Meta.
// They are marshalled to JSON only at the persistence edge.
type WorkerMeta struct {
	IDNo    string `json:"id_no"`
	Phone   string `json:"phone"`
	JobType string `json:"job_type"`
}

type AreaMeta struct {
	AccessGroupID string `json:"access_group_id"`
}

type VideoMeta struct {
	DurationSec     int     `json:"duration_sec"`
	RequiredPercent float64 `json:"required_percent"`
}

func MarshalMeta(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}

func (s *DailyTicketSnapshot) VideoMeta() (VideoMeta, error) {
	var m VideoMeta
	err := json.Unmarshal(s.Meta, &m)
	return m, err
}

func (s *DailyTicketSnapshot) AreaMeta() (AreaMeta, error) {
	var m AreaMeta
	err := json.Unmarshal(s.Meta, &m)
	return m, err
}

func (s *DailyTicketSnapshot) WorkerMeta() (WorkerMeta, error) {
	var m WorkerMeta
	err := json.Unmarshal(s.Meta, &m)
	return m, err
}
