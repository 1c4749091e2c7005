package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/brymix/dashboard-bff/internal/auth"
	"github.com/brymix/dashboard-bff/internal/domain"
	"github.com/brymix/dashboard-bff/internal/events"
	"github.com/brymix/dashboard-bff/internal/repository"
)

// loginGuard owns the lockout bookkeeping shared by password login and the
// standalone two-factor verification endpoint.
type loginGuard struct {
	users      repository.UserRepository
	policy     auth.LockoutPolicy
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

func (g *loginGuard) locked(user *domain.User) bool {
	return g.policy.IsLocked(user.Lockout, g.now())
}

// recordFailure applies one failed attempt atomically in the store and emits
// the matching audit events.
func (g *loginGuard) recordFailure(ctx context.Context, user *domain.User, reason, ip string) error {
	state, err := g.users.RecordLoginFailure(ctx, user.ID, g.now(), g.policy)
	if err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}
	g.publish(ctx, events.Event{
		Type:    events.EventLoginFailed,
		UserID:  user.ID,
		Email:   user.Email,
		IP:      ip,
		Payload: events.LoginFailedPayload{Reason: reason, FailedAttempts: state.FailedAttempts},
	})
	if state.LockUntil != nil && state.LockUntil.After(g.now()) {
		g.publish(ctx, events.Event{
			Type:    events.EventAccountLocked,
			UserID:  user.ID,
			Email:   user.Email,
			IP:      ip,
			Payload: events.AccountLockedPayload{LockUntil: *state.LockUntil},
		})
	}
	return nil
}

func (g *loginGuard) recordSuccess(ctx context.Context, user *domain.User) (time.Time, error) {
	at := g.now()
	if err := g.users.RecordLoginSuccess(ctx, user.ID, at); err != nil {
		return time.Time{}, fmt.Errorf("record login success: %w", err)
	}
	return at, nil
}

// consumeBackupCode removes candidate from the stored codes. Concurrent use of
// the same code is settled by the store's compare-and-swap: only one caller
// observes true.
func (g *loginGuard) consumeBackupCode(ctx context.Context, user *domain.User, candidate, ip string) (bool, error) {
	ok, remaining := auth.ConsumeBackupCode(user.TwoFactorBackupCodes, candidate)
	if !ok {
		return false, nil
	}
	swapped, err := g.users.SwapBackupCodes(ctx, user.ID, user.TwoFactorBackupCodes, remaining)
	if err != nil {
		return false, fmt.Errorf("consume backup code: %w", err)
	}
	if !swapped {
		return false, nil
	}
	user.TwoFactorBackupCodes = remaining
	g.publish(ctx, events.Event{
		Type:    events.EventBackupCodeUsed,
		UserID:  user.ID,
		Email:   user.Email,
		IP:      ip,
		Payload: events.BackupCodeUsedPayload{Remaining: len(remaining)},
	})
	return true, nil
}

func (g *loginGuard) publish(ctx context.Context, event events.Event) {
	if g.dispatcher == nil {
		return
	}
	if err := g.dispatcher.Publish(ctx, event); err != nil {
		g.logger.Warn("publish event", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
