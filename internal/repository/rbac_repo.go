package repository

import (
	"context"
	"time"

	"appgrav/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RBACRepository interface {
	ListRoles(ctx context.Context, includeInactive bool) ([]model.Role, error)
	FindRoleByCode(ctx context.Context, code string) (*model.Role, error)
	FindPermissionByCode(ctx context.Context, code string) (*model.Permission, error)

	// ValidAssignments returns the user's role assignments whose validity
	// window contains now, with roles and role permissions preloaded.
	ValidAssignments(ctx context.Context, userID uuid.UUID, now time.Time) ([]model.UserRole, error)

	// ValidOverrides returns the user's direct grants valid at now, oldest
	// first, so that the most recently granted override wins when two rows
	// cover the same permission code.
	ValidOverrides(ctx context.Context, userID uuid.UUID, now time.Time) ([]model.UserPermission, error)

	// FindOverrideForCode returns the direct grant for one permission code
	// valid at now, or gorm.ErrRecordNotFound. When several rows cover the
	// code the most recently granted one is returned. Used by the
	// short-circuit HasPermission path — direct overrides always win.
	FindOverrideForCode(ctx context.Context, userID uuid.UUID, code string, now time.Time) (*model.UserPermission, error)

	// HasRoleGrant reports whether any currently-valid role assignment of
	// the user carries the permission code, without loading the full set.
	HasRoleGrant(ctx context.Context, userID uuid.UUID, code string, now time.Time) (bool, error)

	// HasRole reports whether the user currently holds the role code.
	HasRole(ctx context.Context, userID uuid.UUID, roleCode string, now time.Time) (bool, error)

	ReplaceAssignments(ctx context.Context, userID uuid.UUID, assignments []model.UserRole) error
	ReplaceOverrides(ctx context.Context, userID uuid.UUID, overrides []model.UserPermission) error
}

type rbacRepo struct{ db *gorm.DB }

func NewRBACRepository(db *gorm.DB) RBACRepository { return &rbacRepo{db: db} }

func (r *rbacRepo) ListRoles(ctx context.Context, includeInactive bool) ([]model.Role, error) {
	var roles []model.Role
	q := r.db.WithContext(ctx).Order("hierarchy_level DESC")
	if !includeInactive {
		q = q.Where("is_active = true")
	}
	err := q.Find(&roles).Error
	return roles, err
}

func (r *rbacRepo) FindRoleByCode(ctx context.Context, code string) (*model.Role, error) {
	var role model.Role
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&role).Error
	return &role, err
}

func (r *rbacRepo) FindPermissionByCode(ctx context.Context, code string) (*model.Permission, error) {
	var p model.Permission
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&p).Error
	return &p, err
}

func (r *rbacRepo) ValidAssignments(ctx context.Context, userID uuid.UUID, now time.Time) ([]model.UserRole, error) {
	var assignments []model.UserRole
	err := r.db.WithContext(ctx).
		Preload("Role").
		Preload("Role.Permissions.Permission").
		Where(`user_id = ?
			AND (valid_from IS NULL OR valid_from <= ?)
			AND (valid_until IS NULL OR valid_until > ?)`, userID, now, now).
		Find(&assignments).Error
	return assignments, err
}

func (r *rbacRepo) ValidOverrides(ctx context.Context, userID uuid.UUID, now time.Time) ([]model.UserPermission, error) {
	var overrides []model.UserPermission
	err := r.db.WithContext(ctx).
		Preload("Permission").
		Where(`user_id = ?
			AND (valid_from IS NULL OR valid_from <= ?)
			AND (valid_until IS NULL OR valid_until > ?)`, userID, now, now).
		Order("granted_at ASC").
		Find(&overrides).Error
	return overrides, err
}

func (r *rbacRepo) FindOverrideForCode(ctx context.Context, userID uuid.UUID, code string, now time.Time) (*model.UserPermission, error) {
	var up model.UserPermission
	err := r.db.WithContext(ctx).
		Joins("JOIN permissions ON permissions.id = user_permissions.permission_id").
		Where(`user_permissions.user_id = ? AND permissions.code = ?
			AND (user_permissions.valid_from IS NULL OR user_permissions.valid_from <= ?)
			AND (user_permissions.valid_until IS NULL OR user_permissions.valid_until > ?)`,
			userID, code, now, now).
		Order("user_permissions.granted_at DESC").
		Take(&up).Error
	return &up, err
}

func (r *rbacRepo) HasRoleGrant(ctx context.Context, userID uuid.UUID, code string, now time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("user_roles").
		Joins("JOIN role_permissions ON role_permissions.role_id = user_roles.role_id").
		Joins("JOIN permissions ON permissions.id = role_permissions.permission_id").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where(`user_roles.user_id = ? AND permissions.code = ? AND roles.is_active = true
			AND (user_roles.valid_from IS NULL OR user_roles.valid_from <= ?)
			AND (user_roles.valid_until IS NULL OR user_roles.valid_until > ?)`,
			userID, code, now, now).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

func (r *rbacRepo) HasRole(ctx context.Context, userID uuid.UUID, roleCode string, now time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("user_roles").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where(`user_roles.user_id = ? AND roles.code = ?
			AND (user_roles.valid_from IS NULL OR user_roles.valid_from <= ?)
			AND (user_roles.valid_until IS NULL OR user_roles.valid_until > ?)`,
			userID, roleCode, now, now).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

func (r *rbacRepo) ReplaceAssignments(ctx context.Context, userID uuid.UUID, assignments []model.UserRole) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.UserRole{}).Error; err != nil {
			return err
		}
		if len(assignments) == 0 {
			return nil
		}
		return tx.Create(&assignments).Error
	})
}

func (r *rbacRepo) ReplaceOverrides(ctx context.Context, userID uuid.UUID, overrides []model.UserPermission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.UserPermission{}).Error; err != nil {
			return err
		}
		if len(overrides) == 0 {
			return nil
		}
		return tx.Create(&overrides).Error
	})
}
