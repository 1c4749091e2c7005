package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/brymix/dashboard-bff/internal/auth"
	"github.com/brymix/dashboard-bff/internal/config"
	"github.com/brymix/dashboard-bff/internal/domain"
	"github.com/brymix/dashboard-bff/internal/events"
	"github.com/brymix/dashboard-bff/internal/repository"
)

// SetupResult is shown to the user once while enrolling an authenticator.
type SetupResult struct {
	Secret string
	QRCode string
}

// TwoFactorStatus summarizes enrollment for the settings page.
type TwoFactorStatus struct {
	Enabled          bool
	BackupCodesCount int
}

// VerifyInput is the unauthenticated second-factor check used mid-login.
type VerifyInput struct {
	Email        string
	Token        string
	IsBackupCode bool
	ClientIP     string
}

// TwoFactorService drives the Disabled, PendingSetup and Enabled transitions.
type TwoFactorService struct {
	users       repository.UserRepository
	hasher      *auth.PasswordHasher
	totp        *auth.TOTPEngine
	guard       *loginGuard
	backupCount int
}

// NewTwoFactorService builds the service.
func NewTwoFactorService(authCfg config.AuthConfig, cfg config.TwoFactorConfig, deps AuthDependencies) *TwoFactorService {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	hasher := deps.Hasher
	if hasher == nil {
		hasher = auth.NewPasswordHasher(authCfg.BcryptCost)
	}
	count := cfg.BackupCodeCount
	if count <= 0 {
		count = auth.DefaultBackupCodeCount
	}
	return &TwoFactorService{
		users:       deps.UserRepo,
		hasher:      hasher,
		totp:        deps.TOTP,
		backupCount: count,
		guard: &loginGuard{
			users:      deps.UserRepo,
			policy:     auth.NewLockoutPolicy(authCfg.LockoutThreshold, authCfg.LockoutDuration),
			dispatcher: deps.Dispatcher,
			logger:     logger,
			now:        now,
		},
	}
}

// Setup generates a fresh pending secret, replacing any earlier pending one.
func (s *TwoFactorService) Setup(ctx context.Context, userID string) (*SetupResult, error) {
	user, err := s.loadCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	enrollment, err := s.totp.GenerateSecret(user.Email)
	if err != nil {
		return nil, err
	}
	qr, err := s.totp.RenderQRCodeDataURI(enrollment.ProvisioningURI)
	if err != nil {
		return nil, err
	}

	if err := s.users.StartTwoFactorSetup(ctx, userID, enrollment.Secret); err != nil {
		switch {
		case errors.Is(err, repository.ErrTwoFactorAlreadyEnabled):
			return nil, ErrTwoFactorAlreadyEnabled
		case errors.Is(err, pgx.ErrNoRows):
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("store pending secret: %w", err)
	}
	return &SetupResult{Secret: enrollment.Secret, QRCode: qr}, nil
}

// Enable promotes the pending secret after a verified code and returns the
// freshly generated backup codes. They are not retrievable later.
func (s *TwoFactorService) Enable(ctx context.Context, userID, code string) ([]string, error) {
	user, err := s.loadCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}
	if user.TwoFactorStatus() != domain.TwoFactorPendingSetup {
		return nil, ErrNoPendingSetup
	}
	if !s.totp.VerifyCode(user.TwoFactorSecret, code) {
		return nil, ErrInvalidTwoFactorToken
	}

	codes, err := auth.GenerateBackupCodes(s.backupCount)
	if err != nil {
		return nil, err
	}
	if err := s.users.EnableTwoFactor(ctx, userID, user.TwoFactorSecret, codes); err != nil {
		switch {
		case errors.Is(err, repository.ErrTwoFactorSetupMissing):
			return nil, ErrNoPendingSetup
		case errors.Is(err, pgx.ErrNoRows):
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("enable two-factor: %w", err)
	}

	s.guard.publish(ctx, events.Event{Type: events.EventTwoFactorEnabled, UserID: user.ID, Email: user.Email})
	return codes, nil
}

// Disable requires the account password and clears secret and backup codes.
func (s *TwoFactorService) Disable(ctx context.Context, userID, password string) error {
	user, err := s.loadCredentials(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(user.PasswordHash, password) {
		return ErrInvalidPassword
	}
	if err := s.users.DisableTwoFactor(ctx, userID); err != nil {
		return fmt.Errorf("disable two-factor: %w", err)
	}

	s.guard.publish(ctx, events.Event{Type: events.EventTwoFactorDisabled, UserID: user.ID, Email: user.Email})
	return nil
}

// Verify checks a TOTP or backup code for the account behind email. Unknown
// accounts and accounts without 2FA get the same error. A rejected code counts
// as a failed login.
func (s *TwoFactorService) Verify(ctx context.Context, in VerifyInput) (bool, error) {
	user, err := s.users.GetCredentialsByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrInvalidVerifyRequest
		}
		return false, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive || !user.TwoFactorEnabled {
		return false, ErrInvalidVerifyRequest
	}
	if s.guard.locked(user) {
		return false, ErrAccountLocked
	}

	token := strings.TrimSpace(in.Token)
	var verified bool
	if in.IsBackupCode {
		verified, err = s.guard.consumeBackupCode(ctx, user, token, in.ClientIP)
		if err != nil {
			return false, err
		}
	} else {
		verified = s.totp.VerifyCode(user.TwoFactorSecret, token)
	}

	if !verified {
		if err := s.guard.recordFailure(ctx, user, "bad_two_factor_token", in.ClientIP); err != nil {
			return false, err
		}
	}
	return verified, nil
}

// Status reports whether 2FA is on and how many backup codes remain.
func (s *TwoFactorService) Status(ctx context.Context, userID string) (TwoFactorStatus, error) {
	user, err := s.loadCredentials(ctx, userID)
	if err != nil {
		return TwoFactorStatus{}, err
	}
	return TwoFactorStatus{
		Enabled:          user.TwoFactorEnabled,
		BackupCodesCount: len(user.TwoFactorBackupCodes),
	}, nil
}

func (s *TwoFactorService) loadCredentials(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetCredentialsByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}
