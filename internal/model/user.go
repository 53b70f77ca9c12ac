package model

import (
	"time"

	"github.com/google/uuid"
)

// UserProfile stores staff members who authenticate with a PIN.
// The raw PIN is never persisted — only its bcrypt hash.
type UserProfile struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EmployeeCode string    `gorm:"uniqueIndex;not null"`
	FirstName    string    `gorm:"not null"`
	LastName     string    `gorm:"not null"`
	DisplayName  string    `gorm:"not null"`
	Phone        *string
	AvatarURL    *string
	// PreferredLanguage: "fr" | "en" | "id"
	PreferredLanguage string `gorm:"type:varchar(5);not null;default:'id'"`

	PINHash *string `gorm:"column:pin_hash"`
	// FailedLoginAttempts and LockedUntil implement the lockout policy.
	// Both are mutated only via atomic SQL in the repository.
	FailedLoginAttempts int        `gorm:"not null;default:0"`
	LockedUntil         *time.Time `gorm:"index"`
	LastLoginAt         *time.Time
	PasswordChangedAt   *time.Time
	MustChangePassword  bool `gorm:"not null;default:false"`

	IsActive  bool       `gorm:"not null;default:true"`
	CreatedBy *uuid.UUID `gorm:"type:uuid"`
	UpdatedBy *uuid.UUID `gorm:"type:uuid"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Roles []UserRole `gorm:"foreignKey:UserID"`
}

func (UserProfile) TableName() string { return "user_profiles" }

// Name returns the full name used in responses and audit snapshots.
func (u *UserProfile) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.FirstName + " " + u.LastName
}
