package auth

import (
	"time"

	"github.com/brymix/dashboard-bff/internal/domain"
)

const (
	DefaultLockoutThreshold = 5
	DefaultLockoutDuration  = 2 * time.Hour
)

// LockoutPolicy decides when repeated login failures lock an account.
// The store applies the same transitions atomically in SQL; this type is the
// reference the service and tests reason with.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// NewLockoutPolicy applies defaults to non-positive values.
func NewLockoutPolicy(threshold int, duration time.Duration) LockoutPolicy {
	if threshold <= 0 {
		threshold = DefaultLockoutThreshold
	}
	if duration <= 0 {
		duration = DefaultLockoutDuration
	}
	return LockoutPolicy{Threshold: threshold, Duration: duration}
}

// IsLocked reports whether state blocks logins at now.
func (p LockoutPolicy) IsLocked(state domain.LockoutState, now time.Time) bool {
	return state.LockUntil != nil && state.LockUntil.After(now)
}

// OnFailure records one failed attempt. An expired lock starts a fresh cycle;
// an active lock is never extended.
func (p LockoutPolicy) OnFailure(state domain.LockoutState, now time.Time) domain.LockoutState {
	if state.LockUntil != nil && !state.LockUntil.After(now) {
		state = domain.LockoutState{}
	}
	next := domain.LockoutState{
		FailedAttempts: state.FailedAttempts + 1,
		LockUntil:      state.LockUntil,
	}
	if next.LockUntil == nil && next.FailedAttempts >= p.Threshold {
		until := now.Add(p.Duration)
		next.LockUntil = &until
	}
	return next
}

// OnSuccess clears the counter and the lock together.
func (p LockoutPolicy) OnSuccess(domain.LockoutState) domain.LockoutState {
	return domain.LockoutState{}
}
