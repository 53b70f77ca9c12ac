package model

import (
	"time"

	"github.com/google/uuid"
)

// RoleSuperAdmin is the designated non-demotable role: accounts holding it
// cannot be deleted or deactivated, even by callers with users.delete.
const RoleSuperAdmin = "SUPER_ADMIN"

// Role is a named bundle of permissions.
// HierarchyLevel is stored for future precedence rules; nothing reads it yet.
type Role struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Code           string    `gorm:"uniqueIndex;not null"`
	NameFr         string    `gorm:"not null"`
	NameEn         string    `gorm:"not null"`
	NameID         string    `gorm:"column:name_id;not null"`
	Description    *string
	IsSystem       bool `gorm:"not null;default:false"`
	IsActive       bool `gorm:"not null;default:true"`
	HierarchyLevel int  `gorm:"not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Permissions []RolePermission `gorm:"foreignKey:RoleID"`
}

// Permission is an atomic capability identified by a stable code
// ("module.action", e.g. "users.update").
type Permission struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Code        string    `gorm:"uniqueIndex;not null"`
	Module      string    `gorm:"not null;index"`
	Action      string    `gorm:"not null"`
	NameFr      string    `gorm:"not null"`
	NameEn      string    `gorm:"not null"`
	NameID      string    `gorm:"column:name_id;not null"`
	Description *string
	IsSensitive bool `gorm:"not null;default:false"`
	CreatedAt   time.Time
}

// RolePermission attaches a Permission to a Role.
type RolePermission struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RoleID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_role_permission"`
	PermissionID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_role_permission"`
	GrantedAt    time.Time  `gorm:"not null"`
	GrantedBy    *uuid.UUID `gorm:"type:uuid"`

	Permission Permission `gorm:"foreignKey:PermissionID"`
}

// UserRole assigns a Role to a user, optionally time-bounded.
// At most one assignment per user is flagged primary.
type UserRole struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index"`
	RoleID     uuid.UUID `gorm:"type:uuid;not null;index"`
	IsPrimary  bool      `gorm:"not null;default:false"`
	ValidFrom  *time.Time
	ValidUntil *time.Time
	AssignedAt time.Time  `gorm:"not null"`
	AssignedBy *uuid.UUID `gorm:"type:uuid"`

	Role Role `gorm:"foreignKey:RoleID"`
}

// ValidAt reports whether the assignment's validity window contains t.
// A nil bound is unbounded on that side.
func (ur *UserRole) ValidAt(t time.Time) bool {
	if ur.ValidFrom != nil && t.Before(*ur.ValidFrom) {
		return false
	}
	if ur.ValidUntil != nil && !t.Before(*ur.ValidUntil) {
		return false
	}
	return true
}

// UserPermission is a direct per-user override of a specific permission.
// When currently valid it always beats role-derived grants for the same code:
// IsGranted=true adds the capability, IsGranted=false strips it.
type UserPermission struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index"`
	PermissionID uuid.UUID `gorm:"type:uuid;not null;index"`
	IsGranted    bool      `gorm:"not null"`
	ValidFrom    *time.Time
	ValidUntil   *time.Time
	Reason       *string
	GrantedAt    time.Time  `gorm:"not null"`
	GrantedBy    *uuid.UUID `gorm:"type:uuid"`

	Permission Permission `gorm:"foreignKey:PermissionID"`
}

// ValidAt reports whether the override's validity window contains t.
func (up *UserPermission) ValidAt(t time.Time) bool {
	if up.ValidFrom != nil && t.Before(*up.ValidFrom) {
		return false
	}
	if up.ValidUntil != nil && !t.Before(*up.ValidUntil) {
		return false
	}
	return true
}

// EffectivePermission is one entry of a resolved permission set.
// Source: "role" | "direct".
type EffectivePermission struct {
	Code        string `json:"permission_code"`
	Module      string `json:"permission_module"`
	Action      string `json:"permission_action"`
	Source      string `json:"source"`
	IsSensitive bool   `json:"is_sensitive"`
}
