package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/brymix/dashboard-bff/internal/api/http/handlers"
	"github.com/brymix/dashboard-bff/internal/auth"
	"github.com/brymix/dashboard-bff/internal/domain"
)

// RouteConfig bundles dependencies for route registration. Limiters are
// optional; a nil limiter disables that layer.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	TwoFactor      *handlers.TwoFactorHandler
	APIKeys        *handlers.APIKeysHandler
	Dashboard      *handlers.DashboardHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
	GlobalLimiter  fiber.Handler
	AuthLimiter    fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	if cfg.GlobalLimiter != nil {
		app.Use(cfg.GlobalLimiter)
	}
	authLimited := passThrough
	if cfg.AuthLimiter != nil {
		authLimited = cfg.AuthLimiter
	}
	requireAuth := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireUser()}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", authLimited, cfg.Auth.Register)
	authGroup.Post("/login", authLimited, cfg.Auth.Login)
	authGroup.Post("/refresh", authLimited, cfg.Auth.Refresh)

	authProtected := authGroup.Group("", requireAuth...)
	authProtected.Get("/me", cfg.Auth.Me)
	authProtected.Put("/profile", cfg.Auth.UpdateProfile)
	authProtected.Put("/password", cfg.Auth.ChangePassword)

	twoFactor := app.Group("/2fa")
	twoFactor.Post("/verify", authLimited, cfg.TwoFactor.Verify)
	twoFactorProtected := twoFactor.Group("", requireAuth...)
	twoFactorProtected.Post("/setup", cfg.TwoFactor.Setup)
	twoFactorProtected.Post("/enable", cfg.TwoFactor.Enable)
	twoFactorProtected.Post("/disable", cfg.TwoFactor.Disable)
	twoFactorProtected.Get("/status", cfg.TwoFactor.Status)

	keys := app.Group("/keys", requireAuth...)
	keys.Get("/", cfg.APIKeys.List)
	keys.Post("/", cfg.APIKeys.Create)
	keys.Post("/create", cfg.APIKeys.Create)
	keys.Delete("/:keyId", cfg.APIKeys.Revoke)

	dashboard := app.Group("/dashboard", requireAuth...)
	dashboard.Get("/overview", cfg.Dashboard.Overview)
	dashboard.Get("/jobs", cfg.Dashboard.Jobs)
	dashboard.Get("/jobs/:jobId", cfg.Dashboard.Job)
	dashboard.Get("/test-connection", cfg.Dashboard.TestConnection)

	admin := app.Group("/admin", append(requireAuth, auth.RequireRole(domain.UserRoleAdmin))...)
	admin.Put("/users/:id/status", cfg.Admin.SetStatus)
	admin.Post("/users/:id/unlock", cfg.Admin.Unlock)
	admin.Get("/metrics", cfg.Admin.Metrics)
}

func passThrough(c *fiber.Ctx) error {
	return c.Next()
}
