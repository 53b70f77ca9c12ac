package repository

import (
	"context"
	"time"

	"appgrav/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionRepository interface {
	Create(ctx context.Context, s *model.UserSession) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.UserSession, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.UserSession, error)

	// Touch advances last_activity_at. Last-write-wins under concurrency is
	// acceptable; the WHERE guard keeps it from resurrecting ended sessions.
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error

	// End transitions a session to terminal state exactly once. Returns
	// (false, nil) when the session was already ended — ending is idempotent
	// and the first writer's reason wins.
	End(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error)

	// EndAllForUser ends every live session of an account, returning the
	// number of sessions transitioned.
	EndAllForUser(ctx context.Context, userID uuid.UUID, reason string, at time.Time) (int64, error)
}

type sessionRepo struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &sessionRepo{db: db} }

func (r *sessionRepo) Create(ctx context.Context, s *model.UserSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *sessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.UserSession, error) {
	var s model.UserSession
	err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&s).Error
	return &s, err
}

func (r *sessionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.UserSession, error) {
	var s model.UserSession
	err := r.db.WithContext(ctx).First(&s, id).Error
	return &s, err
}

func (r *sessionRepo) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.UserSession{}).
		Where("id = ? AND ended_at IS NULL", id).
		Update("last_activity_at", at).Error
}

func (r *sessionRepo) End(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.UserSession{}).
		Where("id = ? AND ended_at IS NULL", id).
		Updates(map[string]interface{}{"ended_at": at, "end_reason": reason})
	return res.RowsAffected > 0, res.Error
}

func (r *sessionRepo) EndAllForUser(ctx context.Context, userID uuid.UUID, reason string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.UserSession{}).
		Where("user_id = ? AND ended_at IS NULL", userID).
		Updates(map[string]interface{}{"ended_at": at, "end_reason": reason})
	return res.RowsAffected, res.Error
}
