package service

import (
	"errors"
	"fmt"
	"time"
)

// Client-visible outcomes. None of these is retryable as-is: the caller must
// take a different action (wait out a lock, re-authenticate, obtain
// permission). Datastore failures propagate untyped and map to a generic
// internal error at the handler boundary.
var (
	ErrNotFound          = errors.New("not found")
	ErrInactive          = errors.New("account inactive")
	ErrInvalidPINFormat  = errors.New("pin must be 4-6 digits")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionTimeout    = errors.New("session timed out")
	ErrSelfAction        = errors.New("operation not allowed on own account")
	ErrProtectedAccount  = errors.New("operation not allowed on protected account")
	ErrCurrentPINMissing = errors.New("current pin or admin override required")
)

// ValidationError reports a request that parsed fine but is semantically
// incomplete or inconsistent for the requested action.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// LockedError carries the lock expiry. The PIN is never checked while the
// lock is in force.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.Format(time.RFC3339))
}

// InvalidCredentialError reports a failed PIN check and how many free
// attempts remain before the lockout trips (floored at 0).
type InvalidCredentialError struct {
	AttemptsRemaining int
}

func (e *InvalidCredentialError) Error() string {
	return fmt.Sprintf("invalid pin, %d attempts remaining", e.AttemptsRemaining)
}

// ForbiddenError names the permission the caller lacks.
type ForbiddenError struct {
	Permission string
}

func (e *ForbiddenError) Error() string {
	return "permission denied: " + e.Permission
}

// SessionEndedError reports the terminal reason of an already-ended session.
type SessionEndedError struct {
	Reason string
}

func (e *SessionEndedError) Error() string {
	return "session ended: " + e.Reason
}
