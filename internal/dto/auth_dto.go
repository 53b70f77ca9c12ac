package dto

import "time"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type VerifyPinRequest struct {
	UserID     string  `json:"user_id"     validate:"required,uuid4"`
	PIN        string  `json:"pin"         validate:"required,min=4,max=6"`
	DeviceType *string `json:"device_type" validate:"omitempty,oneof=desktop tablet pos"`
	DeviceName *string `json:"device_name" validate:"omitempty,max=200"`
}

type GetSessionRequest struct {
	SessionToken string `json:"session_token" validate:"required"`
}

type LogoutRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid4"`
	UserID    string `json:"user_id"    validate:"required,uuid4"`
	Reason    string `json:"reason"     validate:"omitempty,oneof=logout forced"`
}

type ChangePinRequest struct {
	UserID        string  `json:"user_id"        validate:"required,uuid4"`
	CurrentPIN    *string `json:"current_pin"    validate:"omitempty,min=4,max=6"`
	NewPIN        string  `json:"new_pin"        validate:"required"`
	AdminOverride bool    `json:"admin_override"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type UserResponse struct {
	ID                string     `json:"id"`
	EmployeeCode      string     `json:"employee_code"`
	FirstName         string     `json:"first_name"`
	LastName          string     `json:"last_name"`
	DisplayName       string     `json:"display_name"`
	Phone             *string    `json:"phone,omitempty"`
	AvatarURL         *string    `json:"avatar_url,omitempty"`
	PreferredLanguage string     `json:"preferred_language"`
	IsActive          bool       `json:"is_active"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty"`
	MustChangePIN     bool       `json:"must_change_pin"`
}

type RoleResponse struct {
	ID             string `json:"id"`
	Code           string `json:"code"`
	NameFr         string `json:"name_fr"`
	NameEn         string `json:"name_en"`
	NameID         string `json:"name_id"`
	HierarchyLevel int    `json:"hierarchy_level"`
	IsPrimary      bool   `json:"is_primary"`
}

type SessionResponse struct {
	ID         string    `json:"id"`
	Token      string    `json:"token,omitempty"` // only on verify-pin
	DeviceType *string   `json:"device_type"`
	StartedAt  time.Time `json:"started_at"`
}

type PermissionResponse struct {
	Code        string `json:"permission_code"`
	Module      string `json:"permission_module"`
	Action      string `json:"permission_action"`
	Source      string `json:"source"`
	IsSensitive bool   `json:"is_sensitive"`
}

type LoginResponse struct {
	Success     bool                 `json:"success"`
	User        UserResponse         `json:"user"`
	Session     SessionResponse      `json:"session"`
	Roles       []RoleResponse       `json:"roles"`
	Permissions []PermissionResponse `json:"permissions"`
}

type SessionValidationResponse struct {
	Valid       bool                 `json:"valid"`
	User        UserResponse         `json:"user"`
	Session     SessionResponse      `json:"session"`
	Roles       []RoleResponse       `json:"roles"`
	Permissions []PermissionResponse `json:"permissions"`
}

type OKResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
