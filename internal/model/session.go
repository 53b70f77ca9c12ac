package model

import (
	"time"

	"github.com/google/uuid"
)

// Session end reasons. A session with a non-null EndedAt is terminal.
const (
	EndReasonLogout  = "logout"
	EndReasonTimeout = "timeout"
	EndReasonForced  = "forced"
)

// Device classifications reported by the client at login.
const (
	DeviceDesktop = "desktop"
	DeviceTablet  = "tablet"
	DevicePOS     = "pos"
)

// UserSession represents one login. Only the SHA-256 digest of the bearer
// token is stored; the raw value is returned to the client exactly once.
type UserSession struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	TokenHash string    `gorm:"uniqueIndex;not null"`
	// DeviceType: "desktop" | "tablet" | "pos"
	DeviceType *string `gorm:"type:varchar(20)"`
	DeviceName *string
	IPAddress  *string
	UserAgent  *string

	StartedAt      time.Time `gorm:"not null"`
	LastActivityAt time.Time `gorm:"not null"`
	EndedAt        *time.Time
	// EndReason: "logout" | "timeout" | "forced"
	EndReason *string `gorm:"type:varchar(20)"`
}

func (UserSession) TableName() string { return "user_sessions" }

// Alive reports whether the session is usable at the given instant.
func (s *UserSession) Alive(now time.Time, idleTimeout time.Duration) bool {
	return s.EndedAt == nil && now.Sub(s.LastActivityAt) < idleTimeout
}

// IdleExpired reports whether an un-ended session has outlived the idle window.
func (s *UserSession) IdleExpired(now time.Time, idleTimeout time.Duration) bool {
	return s.EndedAt == nil && now.Sub(s.LastActivityAt) >= idleTimeout
}
