package types

import (
	"time"

	"github.com/google/uuid"
)

// Roles for admin principals. Workers authenticate separately through the
// mini-program surface.
const (
	RoleSysAdmin        = "SysAdmin"
	RoleContractorAdmin = "ContractorAdmin"
	RoleWorker          = "Worker"
)

type SysUser struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Username     string     `gorm:"uniqueIndex;not null;column:username" json:"username"`
	PasswordHash string     `gorm:"not null;column:password_hash" json:"-"`
	DisplayName  string     `gorm:"column:display_name" json:"display_name"`
	Role         string     `gorm:"not null;column:role" json:"role"`
	ContractorID *uuid.UUID `gorm:"type:uuid;column:contractor_id" json:"contractor_id,omitempty"`
	SiteID       *uuid.UUID `gorm:"type:uuid;column:site_id" json:"site_id,omitempty"`
	IsActive     bool       `gorm:"not null;default:true;column:is_active" json:"is_active"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (SysUser) TableName() string { return "sys_user" }
