package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"appgrav/internal/dto"
	"appgrav/internal/model"
	"appgrav/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Permission codes gating the account-management operations.
const (
	PermUsersView   = "users.view"
	PermUsersCreate = "users.create"
	PermUsersUpdate = "users.update"
	PermUsersDelete = "users.delete"
	PermUsersRoles  = "users.roles"
	PermAuditView   = "reports.audit"
)

// Identity is the caller as established by a validated session token.
// It is NEVER derived from a client-asserted field.
type Identity struct {
	UserID    uuid.UUID
	SessionID *uuid.UUID
	IPAddress *string
	UserAgent *string
}

// AuthService composes credential verification, session lifecycle and
// permission resolution into the five public operations.
type AuthService interface {
	LoginWithPin(ctx context.Context, req dto.VerifyPinRequest, device DeviceInfo) (*dto.LoginResponse, error)
	GetSession(ctx context.Context, rawToken string) (*dto.SessionValidationResponse, error)
	Logout(ctx context.Context, actor Identity, sessionID, userID uuid.UUID, reason string) error
	ChangePin(ctx context.Context, actor Identity, req dto.ChangePinRequest) error
	ManageUser(ctx context.Context, actor Identity, req dto.UserManagementRequest) (*dto.UserManagementResponse, error)
	ListUsers(ctx context.Context, includeInactive bool) (*dto.ListUsersResponse, error)
	ListRoles(ctx context.Context) (*dto.ListRolesResponse, error)
}

type authService struct {
	users       repository.UserRepository
	rbac        repository.RBACRepository
	credentials CredentialService
	sessions    SessionService
	perms       PermissionService
	audit       AuditService
	now         func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	rbac repository.RBACRepository,
	credentials CredentialService,
	sessions SessionService,
	perms PermissionService,
	audit AuditService,
) AuthService {
	return &authService{
		users:       users,
		rbac:        rbac,
		credentials: credentials,
		sessions:    sessions,
		perms:       perms,
		audit:       audit,
		now:         time.Now,
	}
}

// ── Login / session ──────────────────────────────────────────────────────────

func (s *authService) LoginWithPin(ctx context.Context, req dto.VerifyPinRequest, device DeviceInfo) (*dto.LoginResponse, error) {
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, ErrNotFound
	}

	user, err := s.credentials.Verify(ctx, userID, req.PIN)
	if err != nil {
		return nil, err
	}

	// Session issue is append-only: if it fails, the whole login fails and
	// the credential state stays as Verify left it.
	session, rawToken, err := s.sessions.Issue(ctx, user.ID, device)
	if err != nil {
		return nil, err
	}

	roles, perms, err := s.rolesAndPermissions(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	uid := user.ID
	sid := session.ID
	s.audit.Record(ctx, &model.AuditLog{
		UserID:    &uid,
		Action:    AuditActionLogin,
		Module:    auditModuleAuth,
		IPAddress: device.IPAddress,
		UserAgent: device.UserAgent,
		SessionID: &sid,
		Severity:  model.SeverityInfo,
	})

	return &dto.LoginResponse{
		Success: true,
		User:    toUserResponse(user),
		Session: dto.SessionResponse{
			ID:         session.ID.String(),
			Token:      rawToken,
			DeviceType: session.DeviceType,
			StartedAt:  session.StartedAt,
		},
		Roles:       roles,
		Permissions: perms,
	}, nil
}

func (s *authService) GetSession(ctx context.Context, rawToken string) (*dto.SessionValidationResponse, error) {
	session, user, err := s.sessions.Validate(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	roles, perms, err := s.rolesAndPermissions(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &dto.SessionValidationResponse{
		Valid: true,
		User:  toUserResponse(user),
		Session: dto.SessionResponse{
			ID:         session.ID.String(),
			DeviceType: session.DeviceType,
			StartedAt:  session.StartedAt,
		},
		Roles:       roles,
		Permissions: perms,
	}, nil
}

func (s *authService) Logout(ctx context.Context, actor Identity, sessionID, userID uuid.UUID, reason string) error {
	if err := s.sessions.End(ctx, sessionID, userID, reason); err != nil {
		return err
	}

	actorID := actor.UserID
	sid := sessionID
	s.audit.Record(ctx, &model.AuditLog{
		UserID:    &actorID,
		Action:    AuditActionLogout,
		Module:    auditModuleAuth,
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
		SessionID: &sid,
		Severity:  model.SeverityInfo,
	})
	return nil
}

func (s *authService) ChangePin(ctx context.Context, actor Identity, req dto.ChangePinRequest) error {
	targetID, err := uuid.Parse(req.UserID)
	if err != nil {
		return ErrNotFound
	}
	return s.credentials.ChangePin(ctx, actor, ChangePinInput{
		TargetID:      targetID,
		NewPIN:        req.NewPIN,
		CurrentPIN:    req.CurrentPIN,
		AdminOverride: req.AdminOverride,
	})
}

// ── User management ──────────────────────────────────────────────────────────

func (s *authService) ManageUser(ctx context.Context, actor Identity, req dto.UserManagementRequest) (*dto.UserManagementResponse, error) {
	required := PermUsersUpdate
	switch req.Action {
	case "create":
		required = PermUsersCreate
	case "delete":
		required = PermUsersDelete
	}
	if err := s.requirePermission(ctx, actor.UserID, required); err != nil {
		return nil, err
	}

	switch req.Action {
	case "create":
		return s.createUser(ctx, actor, req)
	case "update":
		return s.updateUser(ctx, actor, req)
	case "delete":
		return s.deleteUser(ctx, actor, req)
	case "toggle_active":
		return s.toggleActive(ctx, actor, req)
	default:
		return nil, &ValidationError{Message: fmt.Sprintf("unknown action %q", req.Action)}
	}
}

func (s *authService) requirePermission(ctx context.Context, userID uuid.UUID, code string) error {
	ok, err := s.perms.HasPermission(ctx, userID, code)
	if err != nil {
		return err
	}
	if !ok {
		return &ForbiddenError{Permission: code}
	}
	return nil
}

func (s *authService) createUser(ctx context.Context, actor Identity, req dto.UserManagementRequest) (*dto.UserManagementResponse, error) {
	if req.FirstName == nil || req.LastName == nil || len(req.RoleIDs) == 0 || req.PrimaryRoleID == nil {
		return nil, &ValidationError{Message: "first_name, last_name, role_ids and primary_role_id are required"}
	}

	now := s.now()
	actorID := actor.UserID
	user := &model.UserProfile{
		FirstName:         *req.FirstName,
		LastName:          *req.LastName,
		DisplayName:       strings.TrimSpace(*req.FirstName + " " + *req.LastName),
		EmployeeCode:      employeeCode(req.EmployeeCode, now),
		Phone:             req.Phone,
		AvatarURL:         req.AvatarURL,
		PreferredLanguage: "id",
		IsActive:          true,
		CreatedBy:         &actorID,
		UpdatedBy:         &actorID,
	}
	if req.DisplayName != nil && *req.DisplayName != "" {
		user.DisplayName = *req.DisplayName
	}
	if req.PreferredLanguage != nil {
		user.PreferredLanguage = *req.PreferredLanguage
	}
	if req.PIN != nil {
		hash, err := s.credentials.HashPIN(*req.PIN)
		if err != nil {
			return nil, err
		}
		user.PINHash = &hash
		user.PasswordChangedAt = &now
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if err := s.assignRoles(ctx, actor, user.ID, req.RoleIDs, *req.PrimaryRoleID, now); err != nil {
		return nil, err
	}
	if len(req.Permissions) > 0 {
		if err := s.applyOverrides(ctx, actor, user.ID, req.Permissions, now); err != nil {
			return nil, err
		}
	}

	uid := user.ID
	entityType := "user_profiles"
	s.audit.Record(ctx, &model.AuditLog{
		UserID:     &actorID,
		Action:     AuditActionCreate,
		Module:     auditModuleUsers,
		EntityType: &entityType,
		EntityID:   &uid,
		NewValues: snapshot(map[string]interface{}{
			"first_name":    user.FirstName,
			"last_name":     user.LastName,
			"employee_code": user.EmployeeCode,
			"role_ids":      req.RoleIDs,
		}),
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
		SessionID: actor.SessionID,
		Severity:  model.SeverityInfo,
	})

	resp := toUserResponse(user)
	roles, _, err := s.rolesAndPermissions(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &dto.UserManagementResponse{Success: true, User: &resp, Roles: roles}, nil
}

func (s *authService) updateUser(ctx context.Context, actor Identity, req dto.UserManagementRequest) (*dto.UserManagementResponse, error) {
	targetID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, ErrNotFound
	}
	user, err := s.users.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	before := toUserResponse(user)

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}
	if user.DisplayName == "" {
		user.DisplayName = strings.TrimSpace(user.FirstName + " " + user.LastName)
	}
	if req.EmployeeCode != nil {
		user.EmployeeCode = *req.EmployeeCode
	}
	if req.Phone != nil {
		user.Phone = req.Phone
	}
	if req.AvatarURL != nil {
		user.AvatarURL = req.AvatarURL
	}
	if req.PreferredLanguage != nil {
		user.PreferredLanguage = *req.PreferredLanguage
	}
	actorID := actor.UserID
	user.UpdatedBy = &actorID

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	now := s.now()
	// Role changes ride on update but carry their own permission gate.
	if len(req.RoleIDs) > 0 && req.PrimaryRoleID != nil {
		if err := s.requirePermission(ctx, actor.UserID, PermUsersRoles); err != nil {
			return nil, err
		}
		if err := s.assignRoles(ctx, actor, user.ID, req.RoleIDs, *req.PrimaryRoleID, now); err != nil {
			return nil, err
		}
	}
	if len(req.Permissions) > 0 {
		if err := s.requirePermission(ctx, actor.UserID, PermUsersRoles); err != nil {
			return nil, err
		}
		if err := s.applyOverrides(ctx, actor, user.ID, req.Permissions, now); err != nil {
			return nil, err
		}
	}
	s.perms.Invalidate(ctx, user.ID)

	after := toUserResponse(user)
	entityType := "user_profiles"
	s.audit.Record(ctx, &model.AuditLog{
		UserID:     &actorID,
		Action:     AuditActionUpdate,
		Module:     auditModuleUsers,
		EntityType: &entityType,
		EntityID:   &targetID,
		OldValues:  snapshot(before),
		NewValues:  snapshot(after),
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
		SessionID:  actor.SessionID,
		Severity:   model.SeverityInfo,
	})

	roles, _, err := s.rolesAndPermissions(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &dto.UserManagementResponse{Success: true, User: &after, Roles: roles}, nil
}

func (s *authService) deleteUser(ctx context.Context, actor Identity, req dto.UserManagementRequest) (*dto.UserManagementResponse, error) {
	targetID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, ErrNotFound
	}
	if targetID == actor.UserID {
		return nil, ErrSelfAction
	}
	if err := s.rejectProtected(ctx, targetID); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := s.users.SetActive(ctx, targetID, false, actor.UserID); err != nil {
		return nil, err
	}
	if _, err := s.sessions.EndAllForUser(ctx, targetID, model.EndReasonForced); err != nil {
		return nil, err
	}
	s.perms.Invalidate(ctx, targetID)

	actorID := actor.UserID
	entityType := "user_profiles"
	s.audit.Record(ctx, &model.AuditLog{
		UserID:     &actorID,
		Action:     AuditActionDelete,
		Module:     auditModuleUsers,
		EntityType: &entityType,
		EntityID:   &targetID,
		OldValues:  snapshot(toUserResponse(user)),
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
		SessionID:  actor.SessionID,
		Severity:   model.SeverityWarning,
	})

	return &dto.UserManagementResponse{Success: true, Message: "User deactivated"}, nil
}

func (s *authService) toggleActive(ctx context.Context, actor Identity, req dto.UserManagementRequest) (*dto.UserManagementResponse, error) {
	targetID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, ErrNotFound
	}
	if req.IsActive == nil {
		return nil, &ValidationError{Message: "is_active is required"}
	}
	active := *req.IsActive

	if !active {
		if targetID == actor.UserID {
			return nil, ErrSelfAction
		}
		if err := s.rejectProtected(ctx, targetID); err != nil {
			return nil, err
		}
	}

	if err := s.users.SetActive(ctx, targetID, active, actor.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !active {
		if _, err := s.sessions.EndAllForUser(ctx, targetID, model.EndReasonForced); err != nil {
			return nil, err
		}
	}
	s.perms.Invalidate(ctx, targetID)

	severity := model.SeverityInfo
	if !active {
		severity = model.SeverityWarning
	}
	actorID := actor.UserID
	entityType := "user_profiles"
	s.audit.Record(ctx, &model.AuditLog{
		UserID:     &actorID,
		Action:     AuditActionUpdate,
		Module:     auditModuleUsers,
		EntityType: &entityType,
		EntityID:   &targetID,
		NewValues:  snapshot(map[string]interface{}{"is_active": active}),
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
		SessionID:  actor.SessionID,
		Severity:   severity,
	})

	return &dto.UserManagementResponse{Success: true, IsActive: &active}, nil
}

// rejectProtected blocks destructive actions on SUPER_ADMIN accounts.
func (s *authService) rejectProtected(ctx context.Context, targetID uuid.UUID) error {
	isSuper, err := s.rbac.HasRole(ctx, targetID, model.RoleSuperAdmin, s.now())
	if err != nil {
		return err
	}
	if isSuper {
		return ErrProtectedAccount
	}
	return nil
}

// ── Listings ─────────────────────────────────────────────────────────────────

func (s *authService) ListUsers(ctx context.Context, includeInactive bool) (*dto.ListUsersResponse, error) {
	users, err := s.users.List(ctx, includeInactive)
	if err != nil {
		return nil, err
	}
	resp := &dto.ListUsersResponse{Users: make([]dto.UserResponse, len(users))}
	for i := range users {
		resp.Users[i] = toUserResponse(&users[i])
	}
	return resp, nil
}

func (s *authService) ListRoles(ctx context.Context) (*dto.ListRolesResponse, error) {
	roles, err := s.rbac.ListRoles(ctx, false)
	if err != nil {
		return nil, err
	}
	resp := &dto.ListRolesResponse{Roles: make([]dto.RoleCatalogEntry, len(roles))}
	for i, r := range roles {
		resp.Roles[i] = dto.RoleCatalogEntry{
			ID:             r.ID.String(),
			Code:           r.Code,
			NameFr:         r.NameFr,
			NameEn:         r.NameEn,
			NameID:         r.NameID,
			Description:    r.Description,
			IsSystem:       r.IsSystem,
			IsActive:       r.IsActive,
			HierarchyLevel: r.HierarchyLevel,
		}
	}
	return resp, nil
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func (s *authService) rolesAndPermissions(ctx context.Context, userID uuid.UUID) ([]dto.RoleResponse, []dto.PermissionResponse, error) {
	assignments, err := s.rbac.ValidAssignments(ctx, userID, s.now())
	if err != nil {
		return nil, nil, err
	}
	roles := make([]dto.RoleResponse, 0, len(assignments))
	for _, a := range assignments {
		if !a.Role.IsActive {
			continue
		}
		roles = append(roles, dto.RoleResponse{
			ID:             a.Role.ID.String(),
			Code:           a.Role.Code,
			NameFr:         a.Role.NameFr,
			NameEn:         a.Role.NameEn,
			NameID:         a.Role.NameID,
			HierarchyLevel: a.Role.HierarchyLevel,
			IsPrimary:      a.IsPrimary,
		})
	}

	set, err := s.perms.EffectivePermissions(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	perms := make([]dto.PermissionResponse, len(set))
	for i, p := range set {
		perms[i] = dto.PermissionResponse{
			Code:        p.Code,
			Module:      p.Module,
			Action:      p.Action,
			Source:      p.Source,
			IsSensitive: p.IsSensitive,
		}
	}
	return roles, perms, nil
}

func (s *authService) assignRoles(ctx context.Context, actor Identity, userID uuid.UUID, roleIDs []string, primaryRoleID string, now time.Time) error {
	actorID := actor.UserID
	assignments := make([]model.UserRole, 0, len(roleIDs))
	for _, raw := range roleIDs {
		roleID, err := uuid.Parse(raw)
		if err != nil {
			return &ValidationError{Message: fmt.Sprintf("invalid role id %q", raw)}
		}
		assignments = append(assignments, model.UserRole{
			UserID:     userID,
			RoleID:     roleID,
			IsPrimary:  raw == primaryRoleID,
			AssignedAt: now,
			AssignedBy: &actorID,
		})
	}
	if err := s.rbac.ReplaceAssignments(ctx, userID, assignments); err != nil {
		return err
	}
	s.perms.Invalidate(ctx, userID)
	return nil
}

func (s *authService) applyOverrides(ctx context.Context, actor Identity, userID uuid.UUID, grants []dto.PermissionGrant, now time.Time) error {
	actorID := actor.UserID
	overrides := make([]model.UserPermission, 0, len(grants))
	for _, g := range grants {
		permID, err := uuid.Parse(g.PermissionID)
		if err != nil {
			return &ValidationError{Message: fmt.Sprintf("invalid permission id %q", g.PermissionID)}
		}
		overrides = append(overrides, model.UserPermission{
			UserID:       userID,
			PermissionID: permID,
			IsGranted:    g.IsGranted,
			Reason:       g.Reason,
			GrantedAt:    now,
			GrantedBy:    &actorID,
		})
	}
	if err := s.rbac.ReplaceOverrides(ctx, userID, overrides); err != nil {
		return err
	}
	s.perms.Invalidate(ctx, userID)
	return nil
}

// employeeCode returns the submitted code or generates EMP-<base36 timestamp>.
func employeeCode(submitted *string, now time.Time) string {
	if submitted != nil && *submitted != "" {
		return *submitted
	}
	return "EMP-" + strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
}

func toUserResponse(u *model.UserProfile) dto.UserResponse {
	return dto.UserResponse{
		ID:                u.ID.String(),
		EmployeeCode:      u.EmployeeCode,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		DisplayName:       u.DisplayName,
		Phone:             u.Phone,
		AvatarURL:         u.AvatarURL,
		PreferredLanguage: u.PreferredLanguage,
		IsActive:          u.IsActive,
		LastLoginAt:       u.LastLoginAt,
		MustChangePIN:     u.MustChangePassword,
	}
}
