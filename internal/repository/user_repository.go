package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brymix/dashboard-bff/internal/auth"
	"github.com/brymix/dashboard-bff/internal/domain"
)

var (
	// ErrDuplicateEmail is returned when the normalized email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrNotHashed guards against persisting a plaintext credential.
	ErrNotHashed = errors.New("password must be hashed before it is stored")
	// ErrTwoFactorAlreadyEnabled is returned when a setup is started on an enabled account.
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication already enabled")
	// ErrTwoFactorSetupMissing is returned when enabling without a matching pending secret.
	ErrTwoFactorSetupMissing = errors.New("no pending two-factor setup")
)

const uniqueViolation = "23505"

// ProfileUpdate carries the mutable, non-identity fields. Nil means unchanged.
type ProfileUpdate struct {
	Name     *string
	Company  *string
	Settings *domain.Settings
}

// UserRepository defines persistence access for dashboard accounts.
//
// Reads through GetByID/GetByEmail never carry the password hash or 2FA
// secrets; the Credentials variants must be used for that. Every mutation is a
// single conditional statement so concurrent requests cannot lose updates.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetCredentialsByID(ctx context.Context, id string) (*domain.User, error)
	GetCredentialsByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*domain.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	SetActive(ctx context.Context, id string, active bool) error
	RecordLoginFailure(ctx context.Context, id string, now time.Time, policy auth.LockoutPolicy) (domain.LockoutState, error)
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error
	ResetLockout(ctx context.Context, id string) error
	StartTwoFactorSetup(ctx context.Context, id, secret string) error
	EnableTwoFactor(ctx context.Context, id, secret string, backupCodes []string) error
	DisableTwoFactor(ctx context.Context, id string) error
	SwapBackupCodes(ctx context.Context, id string, expected, remaining []string) (bool, error)
}

// NormalizeEmail is the canonical form used for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const profileColumns = `id, email, name, company, role, settings, is_active, last_login,
        failed_login_attempts, lock_until, two_factor_enabled, created_at, updated_at`

const credentialColumns = profileColumns + `, password_hash, COALESCE(two_factor_secret, ''), two_factor_backup_codes`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if !auth.IsHash(user.PasswordHash) {
		return ErrNotHashed
	}
	user.Email = NormalizeEmail(user.Email)
	if user.Role == "" {
		user.Role = domain.UserRoleUser
	}

	const query = `
        INSERT INTO users (email, password_hash, name, company, role, settings, is_active)
        VALUES ($1, $2, $3, $4, $5, $6, TRUE)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Company,
		user.Role,
		user.Settings,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateEmail
		}
		return err
	}
	user.IsActive = true
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, pgx.ErrNoRows
	}
	return r.getOne(ctx, `SELECT `+profileColumns+` FROM users WHERE id=$1`, false, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+profileColumns+` FROM users WHERE email=$1`, false, NormalizeEmail(email))
}

func (r *userRepository) GetCredentialsByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, pgx.ErrNoRows
	}
	return r.getOne(ctx, `SELECT `+credentialColumns+` FROM users WHERE id=$1`, true, id)
}

func (r *userRepository) GetCredentialsByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+credentialColumns+` FROM users WHERE email=$1`, true, NormalizeEmail(email))
}

func (r *userRepository) getOne(ctx context.Context, query string, withCredentials bool, arg string) (*domain.User, error) {
	var user domain.User
	dest := []any{
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Company,
		&user.Role,
		&user.Settings,
		&user.IsActive,
		&user.LastLogin,
		&user.Lockout.FailedAttempts,
		&user.Lockout.LockUntil,
		&user.TwoFactorEnabled,
		&user.CreatedAt,
		&user.UpdatedAt,
	}
	if withCredentials {
		dest = append(dest, &user.PasswordHash, &user.TwoFactorSecret, &user.TwoFactorBackupCodes)
	}
	if err := r.pool.QueryRow(ctx, query, arg).Scan(dest...); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*domain.User, error) {
	const query = `
        UPDATE users SET
            name = COALESCE($2, name),
            company = COALESCE($3, company),
            settings = COALESCE($4, settings),
            updated_at = NOW()
        WHERE id=$1
        RETURNING ` + profileColumns

	var settings any
	if update.Settings != nil {
		settings = *update.Settings
	}

	var user domain.User
	err := r.pool.QueryRow(ctx, query, id, update.Name, update.Company, settings).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Company,
		&user.Role,
		&user.Settings,
		&user.IsActive,
		&user.LastLogin,
		&user.Lockout.FailedAttempts,
		&user.Lockout.LockUntil,
		&user.TwoFactorEnabled,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	if !auth.IsHash(hash) {
		return ErrNotHashed
	}
	return r.exec(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, id, hash)
}

func (r *userRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.exec(ctx, `UPDATE users SET is_active=$2, updated_at=NOW() WHERE id=$1`, id, active)
}

// RecordLoginFailure applies LockoutPolicy.OnFailure inside one UPDATE so the
// threshold cannot be skipped by concurrent failures.
func (r *userRepository) RecordLoginFailure(ctx context.Context, id string, now time.Time, policy auth.LockoutPolicy) (domain.LockoutState, error) {
	const query = `
        UPDATE users SET
            failed_login_attempts = CASE
                WHEN lock_until IS NOT NULL AND lock_until <= $2 THEN 1
                ELSE failed_login_attempts + 1
            END,
            lock_until = CASE
                WHEN lock_until IS NOT NULL AND lock_until > $2 THEN lock_until
                WHEN lock_until IS NOT NULL AND lock_until <= $2 THEN
                    CASE WHEN 1 >= $3::int THEN $4::timestamptz ELSE NULL END
                WHEN failed_login_attempts + 1 >= $3::int THEN $4::timestamptz
                ELSE NULL
            END,
            updated_at = NOW()
        WHERE id=$1
        RETURNING failed_login_attempts, lock_until`

	var state domain.LockoutState
	err := r.pool.QueryRow(ctx, query, id, now, policy.Threshold, now.Add(policy.Duration)).
		Scan(&state.FailedAttempts, &state.LockUntil)
	if err != nil {
		return domain.LockoutState{}, err
	}
	return state, nil
}

// RecordLoginSuccess clears lockout state and stamps last_login in one statement.
func (r *userRepository) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `
        UPDATE users SET failed_login_attempts=0, lock_until=NULL, last_login=$2, updated_at=NOW()
        WHERE id=$1`, id, at)
}

func (r *userRepository) ResetLockout(ctx context.Context, id string) error {
	return r.exec(ctx, `
        UPDATE users SET failed_login_attempts=0, lock_until=NULL, updated_at=NOW()
        WHERE id=$1`, id)
}

// StartTwoFactorSetup stores a pending secret, replacing any earlier pending one.
func (r *userRepository) StartTwoFactorSetup(ctx context.Context, id, secret string) error {
	cmd, err := r.pool.Exec(ctx, `
        UPDATE users SET two_factor_secret=$2, updated_at=NOW()
        WHERE id=$1 AND two_factor_enabled=FALSE`, id, secret)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return r.classifyTwoFactorMiss(ctx, id, ErrTwoFactorAlreadyEnabled)
	}
	return nil
}

// EnableTwoFactor promotes the pending secret only if it is still the one the
// caller verified the code against.
func (r *userRepository) EnableTwoFactor(ctx context.Context, id, secret string, backupCodes []string) error {
	cmd, err := r.pool.Exec(ctx, `
        UPDATE users SET two_factor_enabled=TRUE, two_factor_backup_codes=$3, updated_at=NOW()
        WHERE id=$1 AND two_factor_enabled=FALSE AND two_factor_secret=$2`, id, secret, backupCodes)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return r.classifyTwoFactorMiss(ctx, id, ErrTwoFactorSetupMissing)
	}
	return nil
}

func (r *userRepository) DisableTwoFactor(ctx context.Context, id string) error {
	return r.exec(ctx, `
        UPDATE users SET two_factor_enabled=FALSE, two_factor_secret=NULL,
            two_factor_backup_codes='{}', updated_at=NOW()
        WHERE id=$1`, id)
}

// SwapBackupCodes replaces the stored codes only if they still equal expected.
// A false result means another request changed them first.
func (r *userRepository) SwapBackupCodes(ctx context.Context, id string, expected, remaining []string) (bool, error) {
	if expected == nil {
		expected = []string{}
	}
	if remaining == nil {
		remaining = []string{}
	}
	cmd, err := r.pool.Exec(ctx, `
        UPDATE users SET two_factor_backup_codes=$3, updated_at=NOW()
        WHERE id=$1 AND two_factor_enabled=TRUE AND two_factor_backup_codes=$2`, id, expected, remaining)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *userRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// classifyTwoFactorMiss tells a missing user apart from a failed condition.
func (r *userRepository) classifyTwoFactorMiss(ctx context.Context, id string, conditionErr error) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return pgx.ErrNoRows
	}
	return conditionErr
}
