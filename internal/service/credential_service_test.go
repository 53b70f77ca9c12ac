package service

import (
	"context"
	"testing"
	"time"

	"appgrav/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newCredentialFixture(t *testing.T, at time.Time) (*credentialService, *stubUserRepo, *stubSessionRepo, *stubRBACRepo, *stubAuditRepo) {
	t.Helper()
	users := newStubUserRepo()
	sessions := newStubSessionRepo()
	rbac := newStubRBACRepo()
	audit := &stubAuditRepo{}

	sessionSvc := NewSessionService(sessions, users, testCfg()).(*sessionService)
	sessionSvc.now = fixedClock(at)
	permSvc := NewPermissionService(rbac, nil, testCfg()).(*permissionService)
	permSvc.now = fixedClock(at)
	auditSvc := NewAuditService(audit, nil)

	svc := NewCredentialService(users, sessionSvc, permSvc, auditSvc, nil, testCfg()).(*credentialService)
	svc.now = fixedClock(at)
	return svc, users, sessions, rbac, audit
}

func TestVerify_Success(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, users, _, _, _ := newCredentialFixture(t, now)
	u := seedStaff(users, "1234", true)
	users.users[u.ID].FailedLoginAttempts = 3

	got, err := svc.Verify(context.Background(), u.ID, "1234")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	// A successful check clears the counter and stamps the login time.
	stored := users.users[u.ID]
	assert.Equal(t, 0, stored.FailedLoginAttempts)
	assert.Nil(t, stored.LockedUntil)
	require.NotNil(t, stored.LastLoginAt)
	assert.Equal(t, now, *stored.LastLoginAt)
}

func TestVerify_NotFound(t *testing.T) {
	svc, _, _, _, _ := newCredentialFixture(t, time.Now())
	_, err := svc.Verify(context.Background(), uuid.New(), "1234")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerify_Inactive(t *testing.T) {
	svc, users, _, _, _ := newCredentialFixture(t, time.Now())
	u := seedStaff(users, "1234", false)

	_, err := svc.Verify(context.Background(), u.ID, "1234")
	assert.ErrorIs(t, err, ErrInactive)
}

func TestVerify_FailureCountdownAndLock(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, users, _, _, audit := newCredentialFixture(t, now)
	u := seedStaff(users, "1234", true)

	// Four wrong PINs count down the free attempts.
	for i, want := range []int{4, 3, 2, 1} {
		_, err := svc.Verify(context.Background(), u.ID, "0000")
		var invalid *InvalidCredentialError
		require.ErrorAs(t, err, &invalid, "attempt %d", i+1)
		assert.Equal(t, want, invalid.AttemptsRemaining)
	}
	assert.Equal(t, AuditActionLoginFail, audit.lastAction())

	// The fifth trips the lock for the configured window.
	_, err := svc.Verify(context.Background(), u.ID, "0000")
	var locked *LockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, now.Add(15*time.Minute), locked.Until)
	assert.Equal(t, AuditActionLockout, audit.lastAction())
	assert.Equal(t, model.SeverityCritical, audit.entries[len(audit.entries)-1].Severity)
}

func TestVerify_CorrectPinWhileLockedStillRejected(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, users, _, _, _ := newCredentialFixture(t, now)
	u := seedStaff(users, "1234", true)
	until := now.Add(10 * time.Minute)
	users.users[u.ID].FailedLoginAttempts = 5
	users.users[u.ID].LockedUntil = &until

	_, err := svc.Verify(context.Background(), u.ID, "1234")
	var locked *LockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, until, locked.Until)

	// The lock window also does not restart on further attempts.
	assert.Equal(t, 5, users.users[u.ID].FailedLoginAttempts)
}

func TestVerify_LockExpiryReopensAccount(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, users, _, _, _ := newCredentialFixture(t, start)
	u := seedStaff(users, "1234", true)
	until := start.Add(-time.Second) // already expired
	users.users[u.ID].FailedLoginAttempts = 5
	users.users[u.ID].LockedUntil = &until

	got, err := svc.Verify(context.Background(), u.ID, "1234")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, 0, users.users[u.ID].FailedLoginAttempts)
	assert.Nil(t, users.users[u.ID].LockedUntil)
}

func TestChangePin_SelfService(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, users, sessions, _, audit := newCredentialFixture(t, now)
	u := seedStaff(users, "1234", true)
	sessions.sessions[uuid.New()] = &model.UserSession{ID: uuid.New(), UserID: u.ID, StartedAt: now, LastActivityAt: now}

	current := "1234"
	err := svc.ChangePin(context.Background(), Identity{UserID: u.ID}, ChangePinInput{
		TargetID:   u.ID,
		CurrentPIN: &current,
		NewPIN:     "5678",
	})
	require.NoError(t, err)

	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*users.users[u.ID].PINHash), []byte("5678")))
	assert.Equal(t, AuditActionPinChange, audit.lastAction())

	// Self-service keeps the user's sessions alive.
	for _, s := range sessions.sessions {
		assert.Nil(t, s.EndedAt)
	}
}

func TestChangePin_SelfService_WrongCurrent(t *testing.T) {
	svc, users, _, _, _ := newCredentialFixture(t, time.Now())
	u := seedStaff(users, "1234", true)

	current := "9999"
	err := svc.ChangePin(context.Background(), Identity{UserID: u.ID}, ChangePinInput{
		TargetID:   u.ID,
		CurrentPIN: &current,
		NewPIN:     "5678",
	})
	var invalid *InvalidCredentialError
	assert.ErrorAs(t, err, &invalid)
}

func TestChangePin_AdminOverride(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, users, sessions, rbac, _ := newCredentialFixture(t, now)
	admin := seedStaff(users, "0000", true)
	target := seedStaff(users, "1234", true)
	grantRole(rbac, admin.ID, "MANAGER", PermUsersUpdate)

	sid := uuid.New()
	sessions.sessions[sid] = &model.UserSession{ID: sid, UserID: target.ID, StartedAt: now, LastActivityAt: now}

	err := svc.ChangePin(context.Background(), Identity{UserID: admin.ID}, ChangePinInput{
		TargetID:      target.ID,
		NewPIN:        "5678",
		AdminOverride: true,
	})
	require.NoError(t, err)

	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*users.users[target.ID].PINHash), []byte("5678")))

	// An admin reset force-ends every session opened with the old PIN.
	ended := sessions.sessions[sid]
	require.NotNil(t, ended.EndedAt)
	assert.Equal(t, model.EndReasonForced, *ended.EndReason)
}

func TestChangePin_AdminOverride_NoPermission(t *testing.T) {
	svc, users, _, _, _ := newCredentialFixture(t, time.Now())
	actor := seedStaff(users, "0000", true)
	target := seedStaff(users, "1234", true)

	err := svc.ChangePin(context.Background(), Identity{UserID: actor.ID}, ChangePinInput{
		TargetID:      target.ID,
		NewPIN:        "5678",
		AdminOverride: true,
	})
	var forbidden *ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	assert.Equal(t, PermUsersUpdate, forbidden.Permission)
}

func TestChangePin_RequiresCurrentOrOverride(t *testing.T) {
	svc, users, _, _, _ := newCredentialFixture(t, time.Now())
	u := seedStaff(users, "1234", true)

	err := svc.ChangePin(context.Background(), Identity{UserID: u.ID}, ChangePinInput{
		TargetID: u.ID,
		NewPIN:   "5678",
	})
	assert.ErrorIs(t, err, ErrCurrentPINMissing)
}

func TestChangePin_FormatValidation(t *testing.T) {
	svc, users, _, _, _ := newCredentialFixture(t, time.Now())
	u := seedStaff(users, "1234", true)

	for _, bad := range []string{"123", "1234567", "12ab", ""} {
		err := svc.ChangePin(context.Background(), Identity{UserID: u.ID}, ChangePinInput{
			TargetID: u.ID,
			NewPIN:   bad,
		})
		assert.ErrorIs(t, err, ErrInvalidPINFormat, "pin %q", bad)
	}
}
