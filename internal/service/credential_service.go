package service

import (
	"context"
	"errors"
	"regexp"
	"time"

	"appgrav/internal/config"
	"appgrav/internal/model"
	"appgrav/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const bcryptCost = 12

var pinFormat = regexp.MustCompile(`^[0-9]{4,6}$`)

// lockoutAlerter sends operational notifications when an account trips the
// lock. nil disables alerts (SMTP not configured).
type lockoutAlerter interface {
	EnqueueLockoutAlert(ctx context.Context, userID uuid.UUID, displayName string, until time.Time) error
}

// ChangePinInput carries both PIN-change paths: self-service (verified
// current PIN) and administrative (adminOverride + users.update).
type ChangePinInput struct {
	TargetID      uuid.UUID
	NewPIN        string
	CurrentPIN    *string
	AdminOverride bool
}

// CredentialService verifies PINs under the lockout policy and performs
// PIN changes. It never returns the stored hash and never reveals whether
// a PIN was "close": callers only ever see the documented error outcomes.
type CredentialService interface {
	// Verify checks a candidate PIN. Outcomes: the account, or ErrNotFound,
	// ErrInactive, *LockedError (PIN not checked), *InvalidCredentialError.
	Verify(ctx context.Context, userID uuid.UUID, candidatePIN string) (*model.UserProfile, error)

	// ChangePin re-hashes and stores a new PIN atomically with a counter
	// reset. The administrative path force-ends the target's sessions.
	ChangePin(ctx context.Context, actor Identity, in ChangePinInput) error

	// HashPIN is exposed for account creation.
	HashPIN(pin string) (string, error)
}

type credentialService struct {
	users    repository.UserRepository
	sessions SessionService
	perms    PermissionService
	audit    AuditService
	alerts   lockoutAlerter
	policy   LockoutPolicy
	now      func() time.Time
}

func NewCredentialService(
	users repository.UserRepository,
	sessions SessionService,
	perms PermissionService,
	audit AuditService,
	alerts lockoutAlerter,
	cfg *config.Config,
) CredentialService {
	return &credentialService{
		users:    users,
		sessions: sessions,
		perms:    perms,
		audit:    audit,
		alerts:   alerts,
		policy:   LockoutPolicy{Threshold: cfg.LockoutMaxAttempts, LockDuration: cfg.LockDuration()},
		now:      time.Now,
	}
}

func (s *credentialService) Verify(ctx context.Context, userID uuid.UUID, candidatePIN string) (*model.UserProfile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInactive
	}

	now := s.now()
	// A live lock short-circuits before any hashing: no wasted bcrypt work
	// and no timing signal about the stored credential.
	if s.policy.IsLocked(user.LockedUntil, now) {
		return nil, &LockedError{Until: *user.LockedUntil}
	}

	if user.PINHash != nil &&
		bcrypt.CompareHashAndPassword([]byte(*user.PINHash), []byte(candidatePIN)) == nil {
		if err := s.users.ResetLockout(ctx, user.ID, now); err != nil {
			return nil, err
		}
		user.FailedLoginAttempts = 0
		user.LockedUntil = nil
		user.LastLoginAt = &now
		return user, nil
	}

	return nil, s.registerFailure(ctx, user, now)
}

// registerFailure applies the lockout policy through one atomic counter
// update and emits the audit/alert side effects.
func (s *credentialService) registerFailure(ctx context.Context, user *model.UserProfile, now time.Time) error {
	attempts, lockedUntil, err := s.users.RegisterFailedAttempt(
		ctx, user.ID, s.policy.Threshold, s.policy.LockExpiry(now))
	if err != nil {
		return err
	}

	tripped := s.policy.ShouldLock(attempts) && lockedUntil != nil
	severity := s.policy.Severity(attempts)
	action := AuditActionLoginFail
	if tripped {
		severity = model.SeverityCritical
		action = AuditActionLockout
	}

	uid := user.ID
	s.audit.Record(ctx, &model.AuditLog{
		UserID:    &uid,
		Action:    action,
		Module:    auditModuleAuth,
		NewValues: snapshot(map[string]interface{}{"failed_attempts": attempts}),
		Severity:  severity,
	})

	if tripped {
		if s.alerts != nil {
			if err := s.alerts.EnqueueLockoutAlert(ctx, user.ID, user.Name(), *lockedUntil); err != nil {
				log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("lockout alert enqueue failed")
			}
		}
		return &LockedError{Until: *lockedUntil}
	}
	return &InvalidCredentialError{AttemptsRemaining: s.policy.AttemptsRemaining(attempts)}
}

func (s *credentialService) ChangePin(ctx context.Context, actor Identity, in ChangePinInput) error {
	if !pinFormat.MatchString(in.NewPIN) {
		return ErrInvalidPINFormat
	}

	target, err := s.users.FindByID(ctx, in.TargetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	adminPath := in.AdminOverride
	switch {
	case adminPath:
		ok, err := s.perms.HasPermission(ctx, actor.UserID, PermUsersUpdate)
		if err != nil {
			return err
		}
		if !ok {
			return &ForbiddenError{Permission: PermUsersUpdate}
		}
	case in.CurrentPIN != nil:
		// Self-service: the current PIN must verify, under the same lockout
		// policy as a login attempt.
		if _, err := s.Verify(ctx, target.ID, *in.CurrentPIN); err != nil {
			return err
		}
	default:
		return ErrCurrentPINMissing
	}

	hash, err := s.HashPIN(in.NewPIN)
	if err != nil {
		return err
	}
	now := s.now()
	if err := s.users.SetPINHash(ctx, target.ID, hash, actor.UserID, now); err != nil {
		return err
	}

	// An administrator resetting someone's PIN invalidates every session
	// that was opened with the old credential.
	if adminPath {
		if _, err := s.sessions.EndAllForUser(ctx, target.ID, model.EndReasonForced); err != nil {
			log.Error().Err(err).Str("user_id", target.ID.String()).Msg("forced session end after pin change failed")
		}
	}

	actorID := actor.UserID
	targetID := target.ID
	entityType := "user_profiles"
	s.audit.Record(ctx, &model.AuditLog{
		UserID:     &actorID,
		Action:     AuditActionPinChange,
		Module:     auditModuleUsers,
		EntityType: &entityType,
		EntityID:   &targetID,
		NewValues:  snapshot(map[string]interface{}{"admin_override": adminPath}),
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
		SessionID:  actor.SessionID,
		Severity:   model.SeverityInfo,
	})
	return nil
}

func (s *credentialService) HashPIN(pin string) (string, error) {
	if !pinFormat.MatchString(pin) {
		return "", ErrInvalidPINFormat
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
