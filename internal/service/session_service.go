package service

import (
	"context"
	"errors"
	"time"

	"appgrav/internal/config"
	"appgrav/internal/model"
	"appgrav/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeviceInfo is what the client reports about itself at login.
type DeviceInfo struct {
	Type      *string
	Name      *string
	IPAddress *string
	UserAgent *string
}

// SessionService owns the session lifecycle:
// Issued → Active → {LoggedOut, TimedOut, ForciblyEnded}. "Active" is a
// derived predicate (ended_at null and not idle-expired), not a stored state.
// Idle timeout is detected lazily at validation time — there is no sweeper.
type SessionService interface {
	// Issue creates a session and returns it along with the raw bearer
	// token. The raw value is never stored and never surfaces again.
	Issue(ctx context.Context, userID uuid.UUID, device DeviceInfo) (*model.UserSession, string, error)

	// Validate resolves a raw token to its live session and owning account,
	// advancing last_activity_at. Error outcomes: ErrSessionNotFound,
	// SessionEndedError, ErrSessionTimeout, ErrNotFound (owner gone),
	// ErrInactive (owner deactivated — the session is force-ended).
	Validate(ctx context.Context, rawToken string) (*model.UserSession, *model.UserProfile, error)

	// End terminates a session. Idempotent: ending an already-ended session
	// succeeds without touching its first end reason.
	End(ctx context.Context, sessionID, userID uuid.UUID, reason string) error

	// EndAllForUser force-ends every live session of an account.
	EndAllForUser(ctx context.Context, userID uuid.UUID, reason string) (int64, error)
}

type sessionService struct {
	sessions    repository.SessionRepository
	users       repository.UserRepository
	idleTimeout time.Duration
	now         func() time.Time
}

func NewSessionService(sessions repository.SessionRepository, users repository.UserRepository, cfg *config.Config) SessionService {
	return &sessionService{
		sessions:    sessions,
		users:       users,
		idleTimeout: cfg.IdleTimeout(),
		now:         time.Now,
	}
}

func (s *sessionService) Issue(ctx context.Context, userID uuid.UUID, device DeviceInfo) (*model.UserSession, string, error) {
	raw, err := newSessionToken()
	if err != nil {
		return nil, "", err
	}

	now := s.now()
	session := &model.UserSession{
		UserID:         userID,
		TokenHash:      hashSessionToken(raw),
		DeviceType:     device.Type,
		DeviceName:     device.Name,
		IPAddress:      device.IPAddress,
		UserAgent:      device.UserAgent,
		StartedAt:      now,
		LastActivityAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", err
	}
	return session, raw, nil
}

func (s *sessionService) Validate(ctx context.Context, rawToken string) (*model.UserSession, *model.UserProfile, error) {
	session, err := s.sessions.FindByTokenHash(ctx, hashSessionToken(rawToken))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, err
	}

	if session.EndedAt != nil {
		reason := model.EndReasonForced
		if session.EndReason != nil {
			reason = *session.EndReason
		}
		return nil, nil, &SessionEndedError{Reason: reason}
	}

	now := s.now()
	if session.IdleExpired(now, s.idleTimeout) {
		// Lazy write-through expiry. If a concurrent caller already ended
		// the session the update is a no-op, which is exactly what we want.
		if _, err := s.sessions.End(ctx, session.ID, model.EndReasonTimeout, now); err != nil {
			return nil, nil, err
		}
		return nil, nil, ErrSessionTimeout
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	if !user.IsActive {
		if _, err := s.sessions.End(ctx, session.ID, model.EndReasonForced, now); err != nil {
			return nil, nil, err
		}
		return nil, nil, ErrInactive
	}

	if err := s.sessions.Touch(ctx, session.ID, now); err != nil {
		return nil, nil, err
	}
	session.LastActivityAt = now
	return session, user, nil
}

func (s *sessionService) End(ctx context.Context, sessionID, userID uuid.UUID, reason string) error {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	// Ownership check before anything else: a session id is not a
	// capability to end someone else's session.
	if session.UserID != userID {
		return ErrSessionNotFound
	}
	if session.EndedAt != nil {
		return nil
	}
	if reason == "" {
		reason = model.EndReasonLogout
	}
	_, err = s.sessions.End(ctx, sessionID, reason, s.now())
	return err
}

func (s *sessionService) EndAllForUser(ctx context.Context, userID uuid.UUID, reason string) (int64, error) {
	return s.sessions.EndAllForUser(ctx, userID, reason, s.now())
}
