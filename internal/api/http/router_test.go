package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/brymix/dashboard-bff/internal/api/http/handlers"
	"github.com/brymix/dashboard-bff/internal/auth"
	"github.com/brymix/dashboard-bff/internal/config"
	"github.com/brymix/dashboard-bff/internal/domain"
	"github.com/brymix/dashboard-bff/internal/events"
	"github.com/brymix/dashboard-bff/internal/observability"
	"github.com/brymix/dashboard-bff/internal/ratelimit"
	"github.com/brymix/dashboard-bff/internal/repository/repotest"
	"github.com/brymix/dashboard-bff/internal/service"
	"github.com/brymix/dashboard-bff/internal/upstream"
	"github.com/brymix/dashboard-bff/internal/worker"
)

const strongPassword = "Passw0rd!"

type offlineUpstream struct{}

func (offlineUpstream) ListKeys(context.Context, string) ([]upstream.Key, error) {
	return nil, upstream.ErrUpstreamUnavailable
}

func (offlineUpstream) CreateKey(context.Context, upstream.CreateKeyRequest) (*upstream.CreatedKey, error) {
	return nil, upstream.ErrUpstreamUnavailable
}

func (offlineUpstream) DeleteKey(context.Context, string, string) error {
	return upstream.ErrUpstreamUnavailable
}

func (offlineUpstream) ListJobs(context.Context, string, int) ([]upstream.Job, error) {
	return nil, upstream.ErrUpstreamUnavailable
}

func (offlineUpstream) GetJob(context.Context, string, string) (*upstream.Job, error) {
	return nil, upstream.ErrNotFound
}

func (offlineUpstream) Health(context.Context) (json.RawMessage, error) {
	return nil, upstream.ErrUpstreamUnavailable
}

type testServer struct {
	app    *fiber.App
	store  *repotest.Store
	totp   *auth.TOTPEngine
	hasher *auth.PasswordHasher
}

func newTestServer(t *testing.T, authLimiter fiber.Handler) *testServer {
	t.Helper()
	logger := zap.NewNop()
	store := repotest.NewStore(nil)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger, metrics))

	authCfg := config.AuthConfig{
		BcryptCost:        bcrypt.MinCost,
		LockoutThreshold:  5,
		LockoutDuration:   2 * time.Hour,
		PasswordMinLength: 8,
	}
	tokens, err := auth.NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, time.Hour)
	require.NoError(t, err)
	totpEngine := auth.NewTOTPEngine(auth.TOTPConfig{Period: 30, Window: 2, QRCodeSize: 128}, nil)
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)

	deps := service.AuthDependencies{
		UserRepo:   store.Users(),
		Hasher:     hasher,
		Tokens:     tokens,
		TOTP:       totpEngine,
		Dispatcher: dispatcher,
		Logger:     logger,
	}
	authService := service.NewAuthService(authCfg, deps)
	twoFactorService := service.NewTwoFactorService(authCfg, config.TwoFactorConfig{BackupCodeCount: 8}, deps)
	up := offlineUpstream{}

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, MiddlewareConfig{Timeout: 5 * time.Second})
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("bff", "test", nil, nil),
		Auth:           handlers.NewAuthHandler(authService, authCfg.PasswordMinLength),
		TwoFactor:      handlers.NewTwoFactorHandler(twoFactorService),
		APIKeys:        handlers.NewAPIKeysHandler(service.NewAPIKeyService(store.APIKeys(), up, dispatcher, logger, nil)),
		Dashboard:      handlers.NewDashboardHandler(service.NewDashboardService(store.APIKeys(), up, logger, nil, 2)),
		Admin:          handlers.NewAdminHandler(authService, metrics),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store.Users(), logger),
		AuthLimiter:    authLimiter,
	})
	return &testServer{app: app, store: store, totp: totpEngine, hasher: hasher}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (s *testServer) register(t *testing.T, email string) map[string]any {
	t.Helper()
	status, body := s.do(t, fiber.MethodPost, "/auth/register", "", fiber.Map{
		"email": email, "password": strongPassword, "company": "Acme", "name": "Ada",
	})
	require.Equal(t, stdhttp.StatusCreated, status, body)
	return body
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestRegisterRoute(t *testing.T) {
	s := newTestServer(t, nil)

	body := s.register(t, "Ada@Example.com")
	require.NotEmpty(t, body["accessToken"])
	require.NotEmpty(t, body["refreshToken"])
	user := body["user"].(map[string]any)
	require.Equal(t, "ada@example.com", user["email"])
	require.Equal(t, false, user["twoFactorEnabled"])
	require.NotContains(t, user, "passwordHash")
	require.Equal(t, "dark", user["settings"].(map[string]any)["theme"])

	status, body := s.do(t, fiber.MethodPost, "/auth/register", "", fiber.Map{
		"email": "ada@example.com", "password": strongPassword, "company": "Acme", "name": "Ada",
	})
	require.Equal(t, stdhttp.StatusBadRequest, status)
	require.Equal(t, "DUPLICATE_USER", errorCode(body))

	status, body = s.do(t, fiber.MethodPost, "/auth/register", "", fiber.Map{
		"email": "bad", "password": "x", "company": "A", "name": "B",
	})
	require.Equal(t, stdhttp.StatusBadRequest, status)
	require.Equal(t, "VALIDATION_FAILED", errorCode(body))
	details := body["error"].(map[string]any)["details"].(map[string]any)
	require.Contains(t, details, "email")
	require.Contains(t, details, "password")
}

func TestLoginLockoutRoute(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "ada@example.com")

	for i := 0; i < 5; i++ {
		status, body := s.do(t, fiber.MethodPost, "/auth/login", "", fiber.Map{"email": "ada@example.com", "password": "Wrong-pass1"})
		require.Equal(t, stdhttp.StatusUnauthorized, status)
		require.Equal(t, "INVALID_CREDENTIALS", errorCode(body))
	}

	status, body := s.do(t, fiber.MethodPost, "/auth/login", "", fiber.Map{"email": "ada@example.com", "password": strongPassword})
	require.Equal(t, stdhttp.StatusLocked, status)
	require.Equal(t, "ACCOUNT_LOCKED", errorCode(body))
	require.NotContains(t, body["error"], "details")
}

func TestTwoFactorLoginRoute(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.register(t, "ada@example.com")["accessToken"].(string)

	status, body := s.do(t, fiber.MethodPost, "/2fa/setup", token, nil)
	require.Equal(t, stdhttp.StatusOK, status)
	secret := body["secret"].(string)
	require.Contains(t, body["qrCode"], "data:image/png;base64,")

	code, err := s.totp.CodeAt(secret, time.Now())
	require.NoError(t, err)
	status, body = s.do(t, fiber.MethodPost, "/2fa/enable", token, fiber.Map{"token": code})
	require.Equal(t, stdhttp.StatusOK, status, body)
	require.Len(t, body["backupCodes"], 8)

	status, body = s.do(t, fiber.MethodPost, "/auth/login", "", fiber.Map{"email": "ada@example.com", "password": strongPassword})
	require.Equal(t, stdhttp.StatusOK, status)
	require.Equal(t, map[string]any{"requiresTwoFactor": true}, body)

	code, err = s.totp.CodeAt(secret, time.Now())
	require.NoError(t, err)
	status, body = s.do(t, fiber.MethodPost, "/auth/login", "", fiber.Map{
		"email": "ada@example.com", "password": strongPassword, "twoFactorToken": code,
	})
	require.Equal(t, stdhttp.StatusOK, status)
	require.NotEmpty(t, body["accessToken"])
	require.Equal(t, true, body["user"].(map[string]any)["twoFactorEnabled"])

	status, body = s.do(t, fiber.MethodGet, "/2fa/status", token, nil)
	require.Equal(t, stdhttp.StatusOK, status)
	require.Equal(t, map[string]any{"enabled": true, "backupCodesCount": float64(8)}, body)

	status, body = s.do(t, fiber.MethodPost, "/2fa/setup", token, nil)
	require.Equal(t, stdhttp.StatusBadRequest, status)
	require.Equal(t, "BAD_REQUEST", errorCode(body))

	status, body = s.do(t, fiber.MethodPost, "/2fa/verify", "", fiber.Map{"email": "nobody@example.com", "token": "123456"})
	require.Equal(t, stdhttp.StatusBadRequest, status, body)
}

func TestRefreshAndMeRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	reg := s.register(t, "ada@example.com")

	status, _ := s.do(t, fiber.MethodPost, "/auth/refresh", "", fiber.Map{})
	require.Equal(t, stdhttp.StatusUnauthorized, status)

	status, body := s.do(t, fiber.MethodPost, "/auth/refresh", "", nil)
	require.Equal(t, stdhttp.StatusUnauthorized, status)
	require.Equal(t, "UNAUTHORIZED", errorCode(body))

	req := httptest.NewRequest(fiber.MethodPost, "/auth/refresh", strings.NewReader("{not json"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, stdhttp.StatusUnauthorized, resp.StatusCode)

	status, body = s.do(t, fiber.MethodPost, "/auth/refresh", "", fiber.Map{"refreshToken": reg["accessToken"]})
	require.Equal(t, stdhttp.StatusUnauthorized, status)
	require.Equal(t, "TOKEN_INVALID", errorCode(body))

	status, body = s.do(t, fiber.MethodPost, "/auth/refresh", "", fiber.Map{"refreshToken": reg["refreshToken"]})
	require.Equal(t, stdhttp.StatusOK, status)
	access := body["accessToken"].(string)

	status, _ = s.do(t, fiber.MethodGet, "/auth/me", "", nil)
	require.Equal(t, stdhttp.StatusUnauthorized, status)

	status, body = s.do(t, fiber.MethodGet, "/auth/me", access, nil)
	require.Equal(t, stdhttp.StatusOK, status)
	require.Equal(t, "ada@example.com", body["user"].(map[string]any)["email"])

	status, body = s.do(t, fiber.MethodPut, "/auth/profile", access, fiber.Map{"name": "Ada Lovelace"})
	require.Equal(t, stdhttp.StatusOK, status)
	require.Equal(t, "Ada Lovelace", body["user"].(map[string]any)["name"])

	status, body = s.do(t, fiber.MethodPut, "/auth/password", access, fiber.Map{"currentPassword": "Wrong-pass1", "newPassword": "N3w-Passw0rd!"})
	require.Equal(t, stdhttp.StatusBadRequest, status)
	require.Equal(t, "BAD_REQUEST", errorCode(body))

	status, _ = s.do(t, fiber.MethodPut, "/auth/password", access, fiber.Map{"currentPassword": strongPassword, "newPassword": "N3w-Passw0rd!"})
	require.Equal(t, stdhttp.StatusOK, status)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	reg := s.register(t, "ada@example.com")
	userToken := reg["accessToken"].(string)
	userID := reg["user"].(map[string]any)["id"].(string)

	hash, err := s.hasher.Hash(strongPassword)
	require.NoError(t, err)
	admin := &domain.User{Email: "root@example.com", Name: "Root", Company: "Brymix", Role: domain.UserRoleAdmin, PasswordHash: hash}
	require.NoError(t, s.store.Users().Create(context.Background(), admin))
	_, body := s.do(t, fiber.MethodPost, "/auth/login", "", fiber.Map{"email": "root@example.com", "password": strongPassword})
	adminToken := body["accessToken"].(string)

	status, body := s.do(t, fiber.MethodGet, "/admin/metrics", userToken, nil)
	require.Equal(t, stdhttp.StatusForbidden, status)
	require.Equal(t, "FORBIDDEN", errorCode(body))

	status, body = s.do(t, fiber.MethodGet, "/admin/metrics", adminToken, nil)
	require.Equal(t, stdhttp.StatusOK, status)
	require.Contains(t, body, "authOutcomes")

	status, _ = s.do(t, fiber.MethodPut, "/admin/users/"+userID+"/status", adminToken, fiber.Map{})
	require.Equal(t, stdhttp.StatusBadRequest, status)

	status, _ = s.do(t, fiber.MethodPut, "/admin/users/"+userID+"/status", adminToken, fiber.Map{"isActive": false})
	require.Equal(t, stdhttp.StatusOK, status)

	status, _ = s.do(t, fiber.MethodGet, "/auth/me", userToken, nil)
	require.Equal(t, stdhttp.StatusUnauthorized, status)
}

func TestUpstreamOutageRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.register(t, "ada@example.com")["accessToken"].(string)

	status, body := s.do(t, fiber.MethodPost, "/keys", token, fiber.Map{"name": "ci"})
	require.Equal(t, stdhttp.StatusServiceUnavailable, status)
	require.Equal(t, "UPSTREAM_UNAVAILABLE", errorCode(body))

	status, body = s.do(t, fiber.MethodGet, "/keys", token, nil)
	require.Equal(t, stdhttp.StatusOK, status)
	require.Equal(t, []any{}, body["keys"])

	status, body = s.do(t, fiber.MethodGet, "/dashboard/overview", token, nil)
	require.Equal(t, stdhttp.StatusOK, status)
	require.Equal(t, []any{}, body["recentJobs"])

	status, body = s.do(t, fiber.MethodGet, "/dashboard/test-connection", token, nil)
	require.Equal(t, stdhttp.StatusServiceUnavailable, status)
	require.Equal(t, "error", body["status"])

	status, _ = s.do(t, fiber.MethodDelete, "/keys/sk_missing", token, nil)
	require.Equal(t, stdhttp.StatusNotFound, status)
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	s := newTestServer(t, ratelimit.Local(ratelimit.NewLocalLimiter(2, time.Hour)))

	for i := 0; i < 2; i++ {
		status, _ := s.do(t, fiber.MethodPost, "/auth/login", "", fiber.Map{"email": "ada@example.com", "password": "x"})
		require.Equal(t, stdhttp.StatusUnauthorized, status)
	}
	status, body := s.do(t, fiber.MethodPost, "/auth/login", "", fiber.Map{"email": "ada@example.com", "password": "x"})
	require.Equal(t, stdhttp.StatusTooManyRequests, status)
	require.Equal(t, "RATE_LIMITED", errorCode(body))

	status, _ = s.do(t, fiber.MethodGet, "/health/live", "", nil)
	require.Equal(t, stdhttp.StatusOK, status)
}

func TestUnknownRouteAndHealth(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, fiber.MethodGet, "/nope", "", nil)
	require.Equal(t, stdhttp.StatusNotFound, status)
	require.Equal(t, "NOT_FOUND", errorCode(body))

	status, body = s.do(t, fiber.MethodGet, "/health/ready", "", nil)
	require.Equal(t, stdhttp.StatusOK, status)
	require.Equal(t, "ready", body["status"])
}

func newProxiedApp(t *testing.T, trusted []string) *fiber.App {
	t.Helper()
	app := NewApp(config.AppConfig{ProxyHeader: fiber.HeaderXForwardedFor, TrustedProxies: trusted})
	RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), MiddlewareConfig{UpstreamURL: "http://upstream.test"})
	app.Use(ratelimit.Local(ratelimit.NewLocalLimiter(1, time.Hour)))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString(c.IP()) })
	return app
}

func forwardedStatus(t *testing.T, app *fiber.App, clientIP string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, "/ping", nil)
	req.Header.Set(fiber.HeaderXForwardedFor, clientIP)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestForwardedClientsHaveSeparateLimits(t *testing.T) {
	app := newProxiedApp(t, nil)

	require.Equal(t, stdhttp.StatusOK, forwardedStatus(t, app, "203.0.113.7"))
	require.Equal(t, stdhttp.StatusTooManyRequests, forwardedStatus(t, app, "203.0.113.7"))
	require.Equal(t, stdhttp.StatusOK, forwardedStatus(t, app, "198.51.100.9"))
}

func TestForwardedHeaderIgnoredFromUntrustedPeer(t *testing.T) {
	app := newProxiedApp(t, []string{"10.0.0.1"})

	require.Equal(t, stdhttp.StatusOK, forwardedStatus(t, app, "203.0.113.7"))
	require.Equal(t, stdhttp.StatusTooManyRequests, forwardedStatus(t, app, "198.51.100.9"))
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t, nil)

	resp, err := s.app.Test(httptest.NewRequest(fiber.MethodGet, "/health/live", nil), -1)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "nosniff", resp.Header.Get(fiber.HeaderXContentTypeOptions))
	require.Equal(t, "SAMEORIGIN", resp.Header.Get(fiber.HeaderXFrameOptions))
	require.Contains(t, resp.Header.Get(fiber.HeaderContentSecurityPolicy), "default-src 'self'")
}
