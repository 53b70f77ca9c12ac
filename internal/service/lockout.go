package service

import "time"

// LockoutPolicy is the pure decision logic for the failed-attempt lockout.
// It knows nothing about the datastore: the repository applies its decisions
// atomically. The original system buried this rule in database triggers;
// here it is an explicit, unit-testable value.
type LockoutPolicy struct {
	Threshold    int
	LockDuration time.Duration
}

// IsLocked reports whether a lock set at lockedUntil is still in force.
func (p LockoutPolicy) IsLocked(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && now.Before(*lockedUntil)
}

// LockExpiry returns the lock expiry for a lock tripped at now.
func (p LockoutPolicy) LockExpiry(now time.Time) time.Time {
	return now.Add(p.LockDuration)
}

// ShouldLock reports whether the given post-increment failure count trips
// the lock.
func (p LockoutPolicy) ShouldLock(failedAttempts int) bool {
	return failedAttempts >= p.Threshold
}

// AttemptsRemaining returns how many free attempts are left, floored at 0.
func (p LockoutPolicy) AttemptsRemaining(failedAttempts int) int {
	remaining := p.Threshold - failedAttempts
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Severity classifies a failed attempt for the audit trail: warning at or
// after the last free attempt, info before.
func (p LockoutPolicy) Severity(failedAttempts int) string {
	if failedAttempts >= p.Threshold-1 {
		return "warning"
	}
	return "info"
}
