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

// RegisterInput carries a validated registration request.
type RegisterInput struct {
	Email    string
	Password string
	Company  string
	Name     string
	ClientIP string
}

// LoginInput carries a validated login request. TwoFactorToken is either a
// TOTP code or, with IsBackupCode, one of the user's backup codes.
type LoginInput struct {
	Email          string
	Password       string
	TwoFactorToken string
	IsBackupCode   bool
	ClientIP       string
}

// AuthResult is returned when credentials were fully accepted.
type AuthResult struct {
	User   *domain.User
	Tokens domain.TokenPair
}

// LoginResult is either a full AuthResult or a request for a second factor.
type LoginResult struct {
	RequiresTwoFactor bool
	AuthResult
}

// AuthService coordinates registration, login and account maintenance flows.
type AuthService struct {
	users      repository.UserRepository
	hasher     *auth.PasswordHasher
	tokenMgr   *auth.TokenManager
	totp       *auth.TOTPEngine
	guard      *loginGuard
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
	minLength  int
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Hasher     *auth.PasswordHasher
	Tokens     *auth.TokenManager
	TOTP       *auth.TOTPEngine
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
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
		hasher = auth.NewPasswordHasher(cfg.BcryptCost)
	}
	return &AuthService{
		users:      deps.UserRepo,
		hasher:     hasher,
		tokenMgr:   deps.Tokens,
		totp:       deps.TOTP,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        now,
		minLength:  cfg.PasswordMinLength,
		guard: &loginGuard{
			users:      deps.UserRepo,
			policy:     auth.NewLockoutPolicy(cfg.LockoutThreshold, cfg.LockoutDuration),
			dispatcher: deps.Dispatcher,
			logger:     logger,
			now:        now,
		},
	}
}

// Register creates an account with default settings and signs the user in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if err := auth.CheckLength(in.Password, s.minLength); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:        repository.NormalizeEmail(in.Email),
		Name:         strings.TrimSpace(in.Name),
		Company:      strings.TrimSpace(in.Company),
		Role:         domain.UserRoleUser,
		Settings:     domain.DefaultSettings(),
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	user.PasswordHash = ""

	tokens, err := s.tokenMgr.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	s.guard.publish(ctx, events.Event{
		Type:   events.EventUserRegistered,
		UserID: user.ID,
		Email:  user.Email,
		IP:     in.ClientIP,
	})
	return &AuthResult{User: user, Tokens: tokens}, nil
}

// Login authenticates a user. Unknown email, inactive account and wrong
// password are indistinguishable to the caller. A locked account is rejected
// before the password is hashed.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	user, err := s.users.GetCredentialsByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.guard.publish(ctx, events.Event{
				Type:    events.EventLoginFailed,
				Email:   repository.NormalizeEmail(in.Email),
				IP:      in.ClientIP,
				Payload: events.LoginFailedPayload{Reason: "unknown_email"},
			})
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if s.guard.locked(user) {
		return nil, ErrAccountLocked
	}

	if !s.hasher.Verify(user.PasswordHash, in.Password) {
		if err := s.guard.recordFailure(ctx, user, "bad_password", in.ClientIP); err != nil {
			return nil, err
		}
		return nil, ErrInvalidCredentials
	}

	if user.TwoFactorEnabled {
		token := strings.TrimSpace(in.TwoFactorToken)
		if token == "" {
			s.guard.publish(ctx, events.Event{
				Type:   events.EventTwoFactorRequired,
				UserID: user.ID,
				Email:  user.Email,
				IP:     in.ClientIP,
			})
			return &LoginResult{RequiresTwoFactor: true}, nil
		}

		verified, err := s.verifySecondFactor(ctx, user, token, in.IsBackupCode, in.ClientIP)
		if err != nil {
			return nil, err
		}
		if !verified {
			if err := s.guard.recordFailure(ctx, user, "bad_two_factor_token", in.ClientIP); err != nil {
				return nil, err
			}
			return nil, ErrInvalidTwoFactorToken
		}
	}

	at, err := s.guard.recordSuccess(ctx, user)
	if err != nil {
		return nil, err
	}
	tokens, err := s.tokenMgr.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	user.LastLogin = &at
	user.Lockout = domain.LockoutState{}
	s.guard.publish(ctx, events.Event{
		Type:   events.EventLoginSucceeded,
		UserID: user.ID,
		Email:  user.Email,
		IP:     in.ClientIP,
	})
	return &LoginResult{AuthResult: AuthResult{User: withoutCredentials(user), Tokens: tokens}}, nil
}

func (s *AuthService) verifySecondFactor(ctx context.Context, user *domain.User, token string, backup bool, ip string) (bool, error) {
	if backup {
		return s.guard.consumeBackupCode(ctx, user, token, ip)
	}
	return s.totp.VerifyCode(user.TwoFactorSecret, token), nil
}

// Refresh verifies a refresh token and rotates it into a new pair. The old
// refresh token stays valid until it expires.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	userID, err := s.tokenMgr.VerifyRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			s.logger.Debug("refresh token expired")
		} else {
			s.logger.Warn("refresh token rejected", zap.Error(err))
		}
		return domain.TokenPair{}, ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TokenPair{}, ErrInvalidRefreshToken
		}
		return domain.TokenPair{}, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return domain.TokenPair{}, ErrInvalidRefreshToken
	}
	return s.tokenMgr.Issue(user.ID)
}

// Me reloads the profile of userID.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// ChangePassword replaces the password hash after re-checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetCredentialsByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}
	if !s.hasher.Verify(user.PasswordHash, currentPassword) {
		return ErrCurrentPasswordInvalid
	}
	if err := auth.CheckLength(newPassword, s.minLength); err != nil {
		return fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.guard.publish(ctx, events.Event{Type: events.EventPasswordChanged, UserID: user.ID, Email: user.Email})
	return nil
}

// UpdateProfile applies a partial update. Email is not updatable.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, update repository.ProfileUpdate) (*domain.User, error) {
	if update.Name != nil {
		trimmed := strings.TrimSpace(*update.Name)
		update.Name = &trimmed
	}
	if update.Company != nil {
		trimmed := strings.TrimSpace(*update.Company)
		update.Company = &trimmed
	}

	user, err := s.users.UpdateProfile(ctx, userID, update)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	s.guard.publish(ctx, events.Event{Type: events.EventProfileUpdated, UserID: user.ID, Email: user.Email})
	return user, nil
}

// SetAccountActive flips the account kill switch. Tokens of a deactivated
// user are rejected by the middleware from the next request on.
func (s *AuthService) SetAccountActive(ctx context.Context, actorID, userID string, active bool) error {
	if err := s.users.SetActive(ctx, userID, active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("set active: %w", err)
	}
	s.guard.publish(ctx, events.Event{
		Type:    events.EventAccountStatusSet,
		UserID:  userID,
		Payload: events.AccountStatusPayload{ActorID: actorID, IsActive: &active},
	})
	return nil
}

// UnlockAccount clears lockout state ahead of the lock window.
func (s *AuthService) UnlockAccount(ctx context.Context, actorID, userID string) error {
	if err := s.users.ResetLockout(ctx, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("reset lockout: %w", err)
	}
	s.guard.publish(ctx, events.Event{
		Type:    events.EventAccountUnlocked,
		UserID:  userID,
		Payload: events.AccountStatusPayload{ActorID: actorID},
	})
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func withoutCredentials(user *domain.User) *domain.User {
	out := *user
	out.PasswordHash = ""
	out.TwoFactorSecret = ""
	out.TwoFactorBackupCodes = nil
	return &out
}
