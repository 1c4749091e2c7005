package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/brymix/dashboard-bff/internal/config"
)

const bodyLimit = 1 << 20

// NewApp builds the fiber application. When ProxyHeader is set, c.IP() reads
// the client address from it; with TrustedProxies only those peers are believed.
func NewApp(cfg config.AppConfig) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:                 cfg.Name,
		DisableStartupMessage:   cfg.IsProduction(),
		BodyLimit:               bodyLimit,
		ProxyHeader:             cfg.ProxyHeader,
		EnableTrustedProxyCheck: len(cfg.TrustedProxies) > 0,
		TrustedProxies:          cfg.TrustedProxies,
		EnableIPValidation:      true,
	})
}
