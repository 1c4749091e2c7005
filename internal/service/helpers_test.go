package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/brymix/dashboard-bff/internal/auth"
	"github.com/brymix/dashboard-bff/internal/config"
	"github.com/brymix/dashboard-bff/internal/events"
	"github.com/brymix/dashboard-bff/internal/repository/repotest"
)

const testPassword = "Passw0rd!"

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	// 15s into a TOTP step so codes generated "now" are stable.
	return &testClock{t: time.Date(2026, 3, 1, 12, 0, 15, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) count(t events.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

type testEnv struct {
	clock     *testClock
	store     *repotest.Store
	recorder  *eventRecorder
	tokens    *auth.TokenManager
	totp      *auth.TOTPEngine
	auth      *AuthService
	twoFactor *TwoFactorService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := newTestClock()
	store := repotest.NewStore(clock.Now)

	tokens, err := auth.NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour, auth.WithClock(clock.Now))
	require.NoError(t, err)
	totpEngine := auth.NewTOTPEngine(auth.TOTPConfig{Period: 30, Window: 2, QRCodeSize: 128}, clock.Now)

	recorder := &eventRecorder{}
	dispatcher := events.NewInMemoryDispatcher(nil)
	for _, et := range events.AllEventTypes {
		dispatcher.Subscribe(et, recorder.handle)
	}

	authCfg := config.AuthConfig{
		BcryptCost:        bcrypt.MinCost,
		LockoutThreshold:  5,
		LockoutDuration:   2 * time.Hour,
		PasswordMinLength: 8,
	}
	deps := AuthDependencies{
		UserRepo:   store.Users(),
		Tokens:     tokens,
		TOTP:       totpEngine,
		Dispatcher: dispatcher,
		Clock:      clock.Now,
	}
	return &testEnv{
		clock:     clock,
		store:     store,
		recorder:  recorder,
		tokens:    tokens,
		totp:      totpEngine,
		auth:      NewAuthService(authCfg, deps),
		twoFactor: NewTwoFactorService(authCfg, config.TwoFactorConfig{BackupCodeCount: 8}, deps),
	}
}

func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()
	res, err := e.auth.Register(context.Background(), RegisterInput{
		Email:    email,
		Password: testPassword,
		Company:  "Acme",
		Name:     "Ada",
	})
	require.NoError(t, err)
	return res.User.ID
}

// enableTwoFactor runs setup and enable, returning the secret and backup codes.
func (e *testEnv) enableTwoFactor(t *testing.T, userID string) (string, []string) {
	t.Helper()
	setup, err := e.twoFactor.Setup(context.Background(), userID)
	require.NoError(t, err)
	codes, err := e.twoFactor.Enable(context.Background(), userID, e.currentCode(t, setup.Secret))
	require.NoError(t, err)
	return setup.Secret, codes
}

func (e *testEnv) currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := e.totp.CodeAt(secret, e.clock.Now())
	require.NoError(t, err)
	return code
}

// wrongCode returns a six digit code the engine rejects right now.
func (e *testEnv) wrongCode(t *testing.T, secret string) string {
	t.Helper()
	for _, candidate := range []string{"000000", "111111", "222222", "333333", "444444"} {
		if !e.totp.VerifyCode(secret, candidate) {
			return candidate
		}
	}
	t.Fatal("no rejected code found")
	return ""
}

func (e *testEnv) failedAttempts(t *testing.T, userID string) int {
	t.Helper()
	u, ok := e.store.Raw(userID)
	require.True(t, ok)
	return u.Lockout.FailedAttempts
}
