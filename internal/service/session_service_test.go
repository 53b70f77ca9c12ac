package service

import (
	"context"
	"testing"
	"time"

	"appgrav/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionFixture(t *testing.T, at time.Time) (*sessionService, *stubSessionRepo, *stubUserRepo) {
	t.Helper()
	sessions := newStubSessionRepo()
	users := newStubUserRepo()
	svc := NewSessionService(sessions, users, testCfg()).(*sessionService)
	svc.now = fixedClock(at)
	return svc, sessions, users
}

func TestSessionIssueAndValidate(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, sessions, users := newSessionFixture(t, now)
	u := seedStaff(users, "1234", true)

	deviceType := "pos"
	session, raw, err := svc.Issue(context.Background(), u.ID, DeviceInfo{Type: &deviceType})
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	// Only the digest is at rest; the raw token never is.
	stored := sessions.sessions[session.ID]
	assert.NotEqual(t, raw, stored.TokenHash)
	assert.Equal(t, hashSessionToken(raw), stored.TokenHash)

	got, owner, err := svc.Validate(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, u.ID, owner.ID)
}

func TestSessionValidate_UnknownToken(t *testing.T) {
	svc, _, _ := newSessionFixture(t, time.Now())
	_, _, err := svc.Validate(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionValidate_AdvancesActivity(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, sessions, users := newSessionFixture(t, start)
	u := seedStaff(users, "1234", true)

	session, raw, err := svc.Issue(context.Background(), u.ID, DeviceInfo{})
	require.NoError(t, err)

	later := start.Add(2 * time.Hour)
	svc.now = fixedClock(later)

	got, _, err := svc.Validate(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, later, got.LastActivityAt)
	assert.Equal(t, later, sessions.sessions[session.ID].LastActivityAt)
}

func TestSessionValidate_IdleTimeoutTransitionsOnce(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, sessions, users := newSessionFixture(t, start)
	u := seedStaff(users, "1234", true)

	session, raw, err := svc.Issue(context.Background(), u.ID, DeviceInfo{})
	require.NoError(t, err)

	// Past the 4h idle window.
	svc.now = fixedClock(start.Add(4*time.Hour + time.Minute))

	_, _, err = svc.Validate(context.Background(), raw)
	assert.ErrorIs(t, err, ErrSessionTimeout)

	stored := sessions.sessions[session.ID]
	require.NotNil(t, stored.EndedAt)
	assert.Equal(t, model.EndReasonTimeout, *stored.EndReason)

	// The second validation sees an ended session with the original reason.
	_, _, err = svc.Validate(context.Background(), raw)
	var ended *SessionEndedError
	require.ErrorAs(t, err, &ended)
	assert.Equal(t, model.EndReasonTimeout, ended.Reason)
}

func TestSessionValidate_JustUnderIdleWindowStillAlive(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, _, users := newSessionFixture(t, start)
	u := seedStaff(users, "1234", true)

	_, raw, err := svc.Issue(context.Background(), u.ID, DeviceInfo{})
	require.NoError(t, err)

	// One second short of the idle limit the session is still usable.
	svc.now = fixedClock(start.Add(4*time.Hour - time.Second))
	_, _, err = svc.Validate(context.Background(), raw)
	assert.NoError(t, err)
}

func TestSessionValidate_InactiveOwnerForceEnds(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, sessions, users := newSessionFixture(t, start)
	u := seedStaff(users, "1234", true)

	session, raw, err := svc.Issue(context.Background(), u.ID, DeviceInfo{})
	require.NoError(t, err)

	users.users[u.ID].IsActive = false

	_, _, err = svc.Validate(context.Background(), raw)
	assert.ErrorIs(t, err, ErrInactive)

	stored := sessions.sessions[session.ID]
	require.NotNil(t, stored.EndedAt)
	assert.Equal(t, model.EndReasonForced, *stored.EndReason)
}

func TestSessionEnd_Idempotent(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, sessions, users := newSessionFixture(t, start)
	u := seedStaff(users, "1234", true)

	session, _, err := svc.Issue(context.Background(), u.ID, DeviceInfo{})
	require.NoError(t, err)

	require.NoError(t, svc.End(context.Background(), session.ID, u.ID, model.EndReasonLogout))

	firstEnd := *sessions.sessions[session.ID].EndedAt

	// Ending again succeeds without overwriting the first reason or time.
	require.NoError(t, svc.End(context.Background(), session.ID, u.ID, model.EndReasonForced))
	assert.Equal(t, firstEnd, *sessions.sessions[session.ID].EndedAt)
	assert.Equal(t, model.EndReasonLogout, *sessions.sessions[session.ID].EndReason)
}

func TestSessionEnd_OwnershipRequired(t *testing.T) {
	svc, _, users := newSessionFixture(t, time.Now())
	u := seedStaff(users, "1234", true)

	session, _, err := svc.Issue(context.Background(), u.ID, DeviceInfo{})
	require.NoError(t, err)

	err = svc.End(context.Background(), session.ID, uuid.New(), model.EndReasonLogout)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionEndAllForUser(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, sessions, users := newSessionFixture(t, start)
	u := seedStaff(users, "1234", true)
	other := seedStaff(users, "5678", true)

	_, _, err := svc.Issue(context.Background(), u.ID, DeviceInfo{})
	require.NoError(t, err)
	_, _, err = svc.Issue(context.Background(), u.ID, DeviceInfo{})
	require.NoError(t, err)
	keep, _, err := svc.Issue(context.Background(), other.ID, DeviceInfo{})
	require.NoError(t, err)

	n, err := svc.EndAllForUser(context.Background(), u.ID, model.EndReasonForced)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Nil(t, sessions.sessions[keep.ID].EndedAt)
}
