package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/brymix/dashboard-bff/pkg/util"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/auth/login", "POST", 200, 10*time.Millisecond)
	m.RecordRequest("/auth/login", "POST", 401, 30*time.Millisecond)
	m.RecordError("/auth/login", "POST", "INVALID_CREDENTIALS")
	m.RecordAuthOutcome("login_failed")
	m.RecordAuthOutcome("login_failed")

	snap := m.Snapshot()
	require.Equal(t, int64(2), snap.TotalRequests)
	require.Equal(t, int64(1), snap.Requests["/auth/login|POST|401"])
	require.Equal(t, int64(1), snap.Errors["/auth/login|POST|INVALID_CREDENTIALS"])
	require.Equal(t, int64(2), snap.AuthOutcomes["login_failed"])
	require.InDelta(t, 20.0, snap.AvgLatencyMs, 0.001)

	snap.AuthOutcomes["login_failed"] = 99
	require.Equal(t, int64(2), m.Snapshot().AuthOutcomes["login_failed"], "snapshot is a copy")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "X")
	m.RecordAuthOutcome("x")
	require.Zero(t, m.Snapshot().TotalRequests)
}

func TestRequestLoggerRecordsStatusOfReturnedErrors(t *testing.T) {
	m := NewMetrics()
	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		return c.Status(apperrors.ToDomainError(err).HTTPStatus).SendString("")
	}})
	app.Use(RequestLogger(zap.NewNop(), m))
	app.Get("/locked", func(*fiber.Ctx) error { return apperrors.NewAccountLocked() })
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for _, path := range []string{"/locked", "/ok"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	snap := m.Snapshot()
	require.Equal(t, int64(1), snap.Requests["/locked|GET|423"])
	require.Equal(t, int64(1), snap.Requests["/ok|GET|200"])
}
