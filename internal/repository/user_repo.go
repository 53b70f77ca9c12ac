package repository

import (
	"context"
	"time"

	"appgrav/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, u *model.UserProfile) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.UserProfile, error)
	List(ctx context.Context, includeInactive bool) ([]model.UserProfile, error)
	Update(ctx context.Context, u *model.UserProfile) error
	SetActive(ctx context.Context, id uuid.UUID, active bool, updatedBy uuid.UUID) error

	// RegisterFailedAttempt atomically increments the failure counter and,
	// when the new count reaches threshold, sets locked_until to lockUntil.
	// Returns the post-increment count and lock expiry. The single UPDATE
	// guarantees two concurrent failures cannot both observe threshold-1
	// and skip the lock transition.
	RegisterFailedAttempt(ctx context.Context, id uuid.UUID, threshold int, lockUntil time.Time) (int, *time.Time, error)

	// ResetLockout clears the counter and lock after a successful
	// verification and stamps last_login_at.
	ResetLockout(ctx context.Context, id uuid.UUID, now time.Time) error

	// SetPINHash atomically stores a new hash together with the counter
	// reset and the password-changed timestamp.
	SetPINHash(ctx context.Context, id uuid.UUID, hash string, changedBy uuid.UUID, now time.Time) error
}

type userRepo struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &userRepo{db: db} }

func (r *userRepo) Create(ctx context.Context, u *model.UserProfile) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *userRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.UserProfile, error) {
	var u model.UserProfile
	err := r.db.WithContext(ctx).Preload("Roles.Role").First(&u, id).Error
	return &u, err
}

func (r *userRepo) List(ctx context.Context, includeInactive bool) ([]model.UserProfile, error) {
	var users []model.UserProfile
	q := r.db.WithContext(ctx).Preload("Roles.Role").Order("display_name")
	if !includeInactive {
		q = q.Where("is_active = true")
	}
	err := q.Find(&users).Error
	return users, err
}

func (r *userRepo) Update(ctx context.Context, u *model.UserProfile) error {
	return r.db.WithContext(ctx).Omit("Roles").Save(u).Error
}

func (r *userRepo) SetActive(ctx context.Context, id uuid.UUID, active bool, updatedBy uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&model.UserProfile{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": active, "updated_by": updatedBy})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepo) RegisterFailedAttempt(ctx context.Context, id uuid.UUID, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	var (
		attempts int
		locked   *time.Time
	)
	row := r.db.WithContext(ctx).Raw(`
		UPDATE user_profiles
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = CASE
		        WHEN failed_login_attempts + 1 >= ? THEN ?
		        ELSE locked_until
		    END,
		    updated_at = now()
		WHERE id = ?
		RETURNING failed_login_attempts, locked_until`,
		threshold, lockUntil, id).Row()
	if err := row.Scan(&attempts, &locked); err != nil {
		return 0, nil, err
	}
	return attempts, locked, nil
}

func (r *userRepo) ResetLockout(ctx context.Context, id uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE user_profiles
		SET failed_login_attempts = 0,
		    locked_until = NULL,
		    last_login_at = ?,
		    updated_at = now()
		WHERE id = ?`, now, id).Error
}

func (r *userRepo) SetPINHash(ctx context.Context, id uuid.UUID, hash string, changedBy uuid.UUID, now time.Time) error {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE user_profiles
		SET pin_hash = ?,
		    failed_login_attempts = 0,
		    locked_until = NULL,
		    password_changed_at = ?,
		    must_change_password = false,
		    updated_by = ?,
		    updated_at = now()
		WHERE id = ?`, hash, now, changedBy, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
