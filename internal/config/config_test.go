package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("CORS_ORIGINS", " http://a.test , ,http://b.test")
	t.Setenv("FASTAPI_URL", "http://upstream.test/")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	require.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTokenTTL)
	require.Equal(t, 5, cfg.Auth.LockoutThreshold)
	require.Equal(t, 2*time.Hour, cfg.Auth.LockoutDuration)
	require.Equal(t, 2, cfg.TwoFactor.Window)
	require.Empty(t, cfg.App.ProxyHeader)
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.Origins)
	require.Equal(t, "http://upstream.test", cfg.Upstream.BaseURL)
	require.Equal(t, 1000, cfg.RateLimit.MaxRequests)
	require.Equal(t, 50, cfg.RateLimit.AuthMax)
}

func TestLoadProductionRejectsDevSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_REFRESH_SECRET", "")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("JWT_SECRET", "prod-access")
	t.Setenv("JWT_REFRESH_SECRET", "prod-refresh")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 5, cfg.RateLimit.AuthMax)
	require.Equal(t, []string{"https://brymix.vercel.app"}, cfg.CORS.Origins)
	require.Equal(t, "X-Forwarded-For", cfg.App.ProxyHeader)

	t.Setenv("TRUSTED_PROXIES", "10.0.0.1, 10.0.0.2")
	cfg, err = Load()
	require.NoError(t, err)
	require.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.App.TrustedProxies)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Auth: AuthConfig{
				AccessSecret:     "a",
				RefreshSecret:    "r",
				AccessTokenTTL:   time.Minute,
				RefreshTokenTTL:  time.Hour,
				LockoutThreshold: 5,
				LockoutDuration:  time.Hour,
			},
			TwoFactor: TwoFactorConfig{BackupCodeCount: 8, PeriodSeconds: 30, Window: 2},
		}
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"same secrets":    func(c *Config) { c.Auth.RefreshSecret = c.Auth.AccessSecret },
		"missing secret":  func(c *Config) { c.Auth.AccessSecret = "" },
		"zero ttl":        func(c *Config) { c.Auth.AccessTokenTTL = 0 },
		"zero threshold":  func(c *Config) { c.Auth.LockoutThreshold = 0 },
		"zero lockout":    func(c *Config) { c.Auth.LockoutDuration = 0 },
		"no backup codes": func(c *Config) { c.TwoFactor.BackupCodeCount = 0 },
		"zero period":     func(c *Config) { c.TwoFactor.PeriodSeconds = 0 },
		"negative window": func(c *Config) { c.TwoFactor.Window = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
