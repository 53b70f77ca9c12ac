package service

import (
	"context"
	"sort"
	"time"

	"appgrav/internal/config"
	"appgrav/internal/model"
	"appgrav/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ── In-memory repository stubs ────────────────────────────────────────────────

type stubUserRepo struct {
	users map[uuid.UUID]*model.UserProfile
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[uuid.UUID]*model.UserProfile)}
}

func (r *stubUserRepo) Create(_ context.Context, u *model.UserProfile) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	r.users[u.ID] = u
	return nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*model.UserProfile, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *stubUserRepo) List(_ context.Context, includeInactive bool) ([]model.UserProfile, error) {
	users := make([]model.UserProfile, 0, len(r.users))
	for _, u := range r.users {
		if !includeInactive && !u.IsActive {
			continue
		}
		users = append(users, *u)
	}
	return users, nil
}

func (r *stubUserRepo) Update(_ context.Context, u *model.UserProfile) error {
	if _, ok := r.users[u.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *stubUserRepo) SetActive(_ context.Context, id uuid.UUID, active bool, updatedBy uuid.UUID) error {
	u, ok := r.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.IsActive = active
	u.UpdatedBy = &updatedBy
	return nil
}

func (r *stubUserRepo) RegisterFailedAttempt(_ context.Context, id uuid.UUID, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	u, ok := r.users[id]
	if !ok {
		return 0, nil, gorm.ErrRecordNotFound
	}
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= threshold {
		u.LockedUntil = &lockUntil
	}
	return u.FailedLoginAttempts, u.LockedUntil, nil
}

func (r *stubUserRepo) ResetLockout(_ context.Context, id uuid.UUID, now time.Time) error {
	u, ok := r.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
	return nil
}

func (r *stubUserRepo) SetPINHash(_ context.Context, id uuid.UUID, hash string, changedBy uuid.UUID, now time.Time) error {
	u, ok := r.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.PINHash = &hash
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.PasswordChangedAt = &now
	u.MustChangePassword = false
	u.UpdatedBy = &changedBy
	return nil
}

type stubSessionRepo struct {
	sessions map[uuid.UUID]*model.UserSession
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{sessions: make(map[uuid.UUID]*model.UserSession)}
}

func (r *stubSessionRepo) Create(_ context.Context, s *model.UserSession) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *stubSessionRepo) FindByTokenHash(_ context.Context, tokenHash string) (*model.UserSession, error) {
	for _, s := range r.sessions {
		if s.TokenHash == tokenHash {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubSessionRepo) FindByID(_ context.Context, id uuid.UUID) (*model.UserSession, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *stubSessionRepo) Touch(_ context.Context, id uuid.UUID, at time.Time) error {
	if s, ok := r.sessions[id]; ok && s.EndedAt == nil {
		s.LastActivityAt = at
	}
	return nil
}

func (r *stubSessionRepo) End(_ context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	s, ok := r.sessions[id]
	if !ok || s.EndedAt != nil {
		return false, nil
	}
	s.EndedAt = &at
	s.EndReason = &reason
	return true, nil
}

func (r *stubSessionRepo) EndAllForUser(_ context.Context, userID uuid.UUID, reason string, at time.Time) (int64, error) {
	var n int64
	for _, s := range r.sessions {
		if s.UserID == userID && s.EndedAt == nil {
			s.EndedAt = &at
			s.EndReason = &reason
			n++
		}
	}
	return n, nil
}

type stubRBACRepo struct {
	roles       []model.Role
	assignments map[uuid.UUID][]model.UserRole
	overrides   map[uuid.UUID][]model.UserPermission
}

func newStubRBACRepo() *stubRBACRepo {
	return &stubRBACRepo{
		assignments: make(map[uuid.UUID][]model.UserRole),
		overrides:   make(map[uuid.UUID][]model.UserPermission),
	}
}

func (r *stubRBACRepo) ListRoles(_ context.Context, includeInactive bool) ([]model.Role, error) {
	roles := make([]model.Role, 0, len(r.roles))
	for _, role := range r.roles {
		if !includeInactive && !role.IsActive {
			continue
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func (r *stubRBACRepo) FindRoleByCode(_ context.Context, code string) (*model.Role, error) {
	for i := range r.roles {
		if r.roles[i].Code == code {
			return &r.roles[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRBACRepo) FindPermissionByCode(_ context.Context, code string) (*model.Permission, error) {
	for _, role := range r.roles {
		for _, rp := range role.Permissions {
			if rp.Permission.Code == code {
				p := rp.Permission
				return &p, nil
			}
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRBACRepo) ValidAssignments(_ context.Context, userID uuid.UUID, now time.Time) ([]model.UserRole, error) {
	var out []model.UserRole
	for _, a := range r.assignments[userID] {
		if a.ValidAt(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

// ValidOverrides sorts oldest first, mirroring the repository's ordering:
// the most recently granted override wins a same-code tie.
func (r *stubRBACRepo) ValidOverrides(_ context.Context, userID uuid.UUID, now time.Time) ([]model.UserPermission, error) {
	var out []model.UserPermission
	for _, o := range r.overrides[userID] {
		if o.ValidAt(now) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GrantedAt.Before(out[j].GrantedAt) })
	return out, nil
}

func (r *stubRBACRepo) FindOverrideForCode(_ context.Context, userID uuid.UUID, code string, now time.Time) (*model.UserPermission, error) {
	var found *model.UserPermission
	for _, o := range r.overrides[userID] {
		if o.Permission.Code == code && o.ValidAt(now) {
			if found == nil || o.GrantedAt.After(found.GrantedAt) {
				cp := o
				found = &cp
			}
		}
	}
	if found == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return found, nil
}

func (r *stubRBACRepo) HasRoleGrant(_ context.Context, userID uuid.UUID, code string, now time.Time) (bool, error) {
	for _, a := range r.assignments[userID] {
		if !a.ValidAt(now) || !a.Role.IsActive {
			continue
		}
		for _, rp := range a.Role.Permissions {
			if rp.Permission.Code == code {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *stubRBACRepo) HasRole(_ context.Context, userID uuid.UUID, roleCode string, now time.Time) (bool, error) {
	for _, a := range r.assignments[userID] {
		if a.ValidAt(now) && a.Role.Code == roleCode {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubRBACRepo) ReplaceAssignments(_ context.Context, userID uuid.UUID, assignments []model.UserRole) error {
	r.assignments[userID] = assignments
	return nil
}

func (r *stubRBACRepo) ReplaceOverrides(_ context.Context, userID uuid.UUID, overrides []model.UserPermission) error {
	r.overrides[userID] = overrides
	return nil
}

type stubAuditRepo struct {
	entries []model.AuditLog
	failErr error
}

func (r *stubAuditRepo) Create(_ context.Context, e *model.AuditLog) error {
	if r.failErr != nil {
		return r.failErr
	}
	r.entries = append(r.entries, *e)
	return nil
}

func (r *stubAuditRepo) List(_ context.Context, f repository.AuditFilter) ([]model.AuditLog, int64, error) {
	return r.entries, int64(len(r.entries)), nil
}

func (r *stubAuditRepo) lastAction() string {
	if len(r.entries) == 0 {
		return ""
	}
	return r.entries[len(r.entries)-1].Action
}

// ── Fixture helpers ───────────────────────────────────────────────────────────

func testCfg() *config.Config {
	return &config.Config{
		LockoutMaxAttempts:        5,
		LockoutDurationMinutes:    15,
		SessionIdleTimeoutHours:   4,
		PermissionCacheTTLSeconds: 120,
	}
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func seedStaff(repo *stubUserRepo, pin string, active bool) *model.UserProfile {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	h := string(hash)
	u := &model.UserProfile{
		ID:                uuid.New(),
		EmployeeCode:      "EMP-TEST",
		FirstName:         "Test",
		LastName:          "Staff",
		DisplayName:       "Test Staff",
		PreferredLanguage: "id",
		PINHash:           &h,
		IsActive:          active,
	}
	repo.users[u.ID] = u
	return u
}

func grantRole(rbac *stubRBACRepo, userID uuid.UUID, roleCode string, permCodes ...string) {
	role := model.Role{
		ID:       uuid.New(),
		Code:     roleCode,
		IsActive: true,
	}
	for _, code := range permCodes {
		role.Permissions = append(role.Permissions, model.RolePermission{
			Permission: model.Permission{ID: uuid.New(), Code: code, Module: "users", Action: code},
		})
	}
	rbac.roles = append(rbac.roles, role)
	rbac.assignments[userID] = append(rbac.assignments[userID], model.UserRole{
		ID:        uuid.New(),
		UserID:    userID,
		RoleID:    role.ID,
		Role:      role,
		IsPrimary: len(rbac.assignments[userID]) == 0,
	})
}
