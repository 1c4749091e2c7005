// Package repotest provides in-memory repositories with the same conditional
// update semantics as the Postgres implementations.
package repotest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/brymix/dashboard-bff/internal/auth"
	"github.com/brymix/dashboard-bff/internal/domain"
	"github.com/brymix/dashboard-bff/internal/repository"
)

// Store backs both UserRepository and APIKeyRepository.
type Store struct {
	mu      sync.Mutex
	users   map[string]*domain.User
	byEmail map[string]string
	keys    map[string][]domain.APIKey
	now     func() time.Time
}

// NewStore returns an empty store. now stamps created/updated timestamps.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		users:   make(map[string]*domain.User),
		byEmail: make(map[string]string),
		keys:    make(map[string][]domain.APIKey),
		now:     now,
	}
}

// Users exposes the store as a UserRepository.
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

// APIKeys exposes the store as an APIKeyRepository.
func (s *Store) APIKeys() repository.APIKeyRepository { return keyRepo{s} }

// Raw returns a copy of the stored row including credentials, for assertions.
func (s *Store) Raw(id string) (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, false
	}
	return cloneUser(u, true), true
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	if !auth.IsHash(user.PasswordHash) {
		return repository.ErrNotHashed
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	email := repository.NormalizeEmail(user.Email)
	if _, taken := s.byEmail[email]; taken {
		return repository.ErrDuplicateEmail
	}
	now := s.now()
	user.ID = uuid.NewString()
	user.Email = email
	if user.Role == "" {
		user.Role = domain.UserRoleUser
	}
	user.IsActive = true
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := cloneUser(user, true)
	s.users[user.ID] = &stored
	s.byEmail[email] = user.ID
	return nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	return r.s.get(id, false)
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.s.getByEmail(email, false)
}

func (r userRepo) GetCredentialsByID(_ context.Context, id string) (*domain.User, error) {
	return r.s.get(id, true)
}

func (r userRepo) GetCredentialsByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.s.getByEmail(email, true)
}

func (r userRepo) UpdateProfile(_ context.Context, id string, update repository.ProfileUpdate) (*domain.User, error) {
	var out domain.User
	err := r.s.mutate(id, func(u *domain.User) error {
		if update.Name != nil {
			u.Name = *update.Name
		}
		if update.Company != nil {
			u.Company = *update.Company
		}
		if update.Settings != nil {
			u.Settings = *update.Settings
		}
		out = cloneUser(u, false)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r userRepo) UpdatePasswordHash(_ context.Context, id, hash string) error {
	if !auth.IsHash(hash) {
		return repository.ErrNotHashed
	}
	return r.s.mutate(id, func(u *domain.User) error {
		u.PasswordHash = hash
		return nil
	})
}

func (r userRepo) SetActive(_ context.Context, id string, active bool) error {
	return r.s.mutate(id, func(u *domain.User) error {
		u.IsActive = active
		return nil
	})
}

func (r userRepo) RecordLoginFailure(_ context.Context, id string, now time.Time, policy auth.LockoutPolicy) (domain.LockoutState, error) {
	var state domain.LockoutState
	err := r.s.mutate(id, func(u *domain.User) error {
		u.Lockout = policy.OnFailure(u.Lockout, now)
		state = u.Lockout
		return nil
	})
	return state, err
}

func (r userRepo) RecordLoginSuccess(_ context.Context, id string, at time.Time) error {
	return r.s.mutate(id, func(u *domain.User) error {
		u.Lockout = domain.LockoutState{}
		last := at
		u.LastLogin = &last
		return nil
	})
}

func (r userRepo) ResetLockout(_ context.Context, id string) error {
	return r.s.mutate(id, func(u *domain.User) error {
		u.Lockout = domain.LockoutState{}
		return nil
	})
}

func (r userRepo) StartTwoFactorSetup(_ context.Context, id, secret string) error {
	return r.s.mutate(id, func(u *domain.User) error {
		if u.TwoFactorEnabled {
			return repository.ErrTwoFactorAlreadyEnabled
		}
		u.TwoFactorSecret = secret
		return nil
	})
}

func (r userRepo) EnableTwoFactor(_ context.Context, id, secret string, backupCodes []string) error {
	return r.s.mutate(id, func(u *domain.User) error {
		if u.TwoFactorEnabled || u.TwoFactorSecret == "" || u.TwoFactorSecret != secret {
			return repository.ErrTwoFactorSetupMissing
		}
		u.TwoFactorEnabled = true
		u.TwoFactorBackupCodes = slices.Clone(backupCodes)
		return nil
	})
}

func (r userRepo) DisableTwoFactor(_ context.Context, id string) error {
	return r.s.mutate(id, func(u *domain.User) error {
		u.TwoFactorEnabled = false
		u.TwoFactorSecret = ""
		u.TwoFactorBackupCodes = nil
		return nil
	})
}

func (r userRepo) SwapBackupCodes(_ context.Context, id string, expected, remaining []string) (bool, error) {
	swapped := false
	err := r.s.mutate(id, func(u *domain.User) error {
		if !u.TwoFactorEnabled || !slices.Equal(u.TwoFactorBackupCodes, expected) {
			return nil
		}
		u.TwoFactorBackupCodes = slices.Clone(remaining)
		swapped = true
		return nil
	})
	return swapped, err
}

type keyRepo struct{ s *Store }

func (r keyRepo) List(_ context.Context, userID string) ([]domain.APIKey, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return slices.Clone(r.s.keys[userID]), nil
}

func (r keyRepo) Add(_ context.Context, userID string, key domain.APIKey) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.keys[userID] {
		if existing.KeyID == key.KeyID {
			return repository.ErrDuplicateAPIKey
		}
	}
	key.IsActive = true
	r.s.keys[userID] = append(r.s.keys[userID], key)
	return nil
}

func (r keyRepo) Deactivate(_ context.Context, userID, keyID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	keys := r.s.keys[userID]
	for i := range keys {
		if keys[i].KeyID == keyID && keys[i].IsActive {
			keys[i].IsActive = false
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r keyRepo) TouchLastUsed(_ context.Context, userID string, keyIDs []string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	keys := r.s.keys[userID]
	for i := range keys {
		if keys[i].IsActive && slices.Contains(keyIDs, keys[i].KeyID) {
			used := at
			keys[i].LastUsed = &used
		}
	}
	return nil
}

func (s *Store) get(id string, withCredentials bool) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := cloneUser(u, withCredentials)
	return &out, nil
}

func (s *Store) getByEmail(email string, withCredentials bool) (*domain.User, error) {
	s.mu.Lock()
	id, ok := s.byEmail[repository.NormalizeEmail(email)]
	s.mu.Unlock()
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return s.get(id, withCredentials)
}

// mutate applies fn under the lock; fn's error leaves the row untouched.
func (s *Store) mutate(id string, fn func(*domain.User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	draft := cloneUser(u, true)
	if err := fn(&draft); err != nil {
		return err
	}
	draft.UpdatedAt = s.now()
	s.users[id] = &draft
	return nil
}

func cloneUser(u *domain.User, withCredentials bool) domain.User {
	out := *u
	if u.LastLogin != nil {
		t := *u.LastLogin
		out.LastLogin = &t
	}
	if u.Lockout.LockUntil != nil {
		t := *u.Lockout.LockUntil
		out.Lockout.LockUntil = &t
	}
	out.TwoFactorBackupCodes = slices.Clone(u.TwoFactorBackupCodes)
	if !withCredentials {
		out.PasswordHash = ""
		out.TwoFactorSecret = ""
		out.TwoFactorBackupCodes = nil
	}
	return out
}
