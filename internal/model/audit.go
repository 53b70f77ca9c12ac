package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// AuditLog is an immutable record of a security-relevant event.
// Rows are only ever inserted — never updated or deleted.
type AuditLog struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	// UserID is the acting account; nil for system actions.
	UserID     *uuid.UUID `gorm:"type:uuid;index"`
	Action     string     `gorm:"not null;index"`
	Module     string     `gorm:"not null;index"`
	EntityType *string
	EntityID   *uuid.UUID      `gorm:"type:uuid"`
	OldValues  json.RawMessage `gorm:"type:jsonb"`
	NewValues  json.RawMessage `gorm:"type:jsonb"`
	IPAddress  *string
	UserAgent  *string
	SessionID  *uuid.UUID `gorm:"type:uuid"`
	// Severity: "info" | "warning" | "critical"
	Severity  string    `gorm:"type:varchar(10);not null;default:'info'"`
	CreatedAt time.Time `gorm:"index"`
}

func (AuditLog) TableName() string { return "audit_logs" }
