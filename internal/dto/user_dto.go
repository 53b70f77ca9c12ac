package dto

// User-management is a single POST endpoint with an action discriminator,
// mirroring the management screens' contract.

type UserManagementRequest struct {
	Action string `json:"action" validate:"required,oneof=create update delete toggle_active"`

	// create / update
	UserID            string            `json:"user_id"            validate:"omitempty,uuid4"`
	FirstName         *string           `json:"first_name"         validate:"omitempty,min=1,max=100"`
	LastName          *string           `json:"last_name"          validate:"omitempty,min=1,max=100"`
	DisplayName       *string           `json:"display_name"       validate:"omitempty,max=150"`
	EmployeeCode      *string           `json:"employee_code"      validate:"omitempty,max=30"`
	Phone             *string           `json:"phone"              validate:"omitempty,max=30"`
	AvatarURL         *string           `json:"avatar_url"         validate:"omitempty,url"`
	PreferredLanguage *string           `json:"preferred_language" validate:"omitempty,oneof=fr en id"`
	PIN               *string           `json:"pin"`
	RoleIDs           []string          `json:"role_ids"           validate:"omitempty,dive,uuid4"`
	PrimaryRoleID     *string           `json:"primary_role_id"    validate:"omitempty,uuid4"`
	Permissions       []PermissionGrant `json:"permissions"        validate:"omitempty,dive"`

	// toggle_active
	IsActive *bool `json:"is_active"`
}

// PermissionGrant is a direct per-user override submitted with create/update.
type PermissionGrant struct {
	PermissionID string  `json:"permission_id" validate:"required,uuid4"`
	IsGranted    bool    `json:"is_granted"`
	Reason       *string `json:"reason"        validate:"omitempty,max=300"`
}

type UserManagementResponse struct {
	Success  bool           `json:"success"`
	User     *UserResponse  `json:"user,omitempty"`
	Roles    []RoleResponse `json:"roles,omitempty"`
	IsActive *bool          `json:"is_active,omitempty"`
	Message  string         `json:"message,omitempty"`
}

type ListUsersResponse struct {
	Users []UserResponse `json:"users"`
}

type ListRolesResponse struct {
	Roles []RoleCatalogEntry `json:"roles"`
}

// RoleCatalogEntry is the full role record for the management screens.
type RoleCatalogEntry struct {
	ID             string  `json:"id"`
	Code           string  `json:"code"`
	NameFr         string  `json:"name_fr"`
	NameEn         string  `json:"name_en"`
	NameID         string  `json:"name_id"`
	Description    *string `json:"description"`
	IsSystem       bool    `json:"is_system"`
	IsActive       bool    `json:"is_active"`
	HierarchyLevel int     `json:"hierarchy_level"`
}

type AuditLogQuery struct {
	UserID string `form:"user_id" validate:"omitempty,uuid4"`
	Module string `form:"module"  validate:"omitempty,max=50"`
	Action string `form:"action"  validate:"omitempty,max=50"`
	Limit  int    `form:"limit"   validate:"omitempty,min=1,max=200"`
	Offset int    `form:"offset"  validate:"omitempty,min=0"`
}

type AuditLogEntry struct {
	ID         string  `json:"id"`
	UserID     *string `json:"user_id"`
	Action     string  `json:"action"`
	Module     string  `json:"module"`
	EntityType *string `json:"entity_type"`
	EntityID   *string `json:"entity_id"`
	Severity   string  `json:"severity"`
	CreatedAt  string  `json:"created_at"`
}

type AuditLogResponse struct {
	Data  []AuditLogEntry `json:"data"`
	Count int64           `json:"count"`
}
