package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	devAccessSecret  = "dev-access-secret"
	devRefreshSecret = "dev-refresh-secret"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	TwoFactor TwoFactorConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Upstream  UpstreamConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	// ProxyHeader names the header carrying the client IP behind a load balancer.
	ProxyHeader           string
	TrustedProxies        []string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level   string
	Service string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	AccessSecret      string
	RefreshSecret     string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	BcryptCost        int
	LockoutThreshold  int
	LockoutDuration   time.Duration
	PasswordMinLength int
}

// TwoFactorConfig defines TOTP enrollment and verification parameters.
type TwoFactorConfig struct {
	Issuer          string
	PeriodSeconds   int
	Window          int
	BackupCodeCount int
	QRCodeSize      int
}

// RateLimitConfig bounds request rates per client IP.
type RateLimitConfig struct {
	Enabled     bool
	Window      time.Duration
	MaxRequests int
	AuthMax     int
}

// CORSConfig lists origins allowed to call the API from a browser.
type CORSConfig struct {
	Origins []string
}

// UpstreamConfig points at the external challenge checking service.
type UpstreamConfig struct {
	BaseURL        string
	TimeoutSeconds int
	Concurrency    int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	env := getEnv("APP_ENV", "development")
	production := env == "production"

	globalMax, authMax := 1000, 50
	defaultOrigins := "http://localhost:3000,http://127.0.0.1:3000"
	proxyHeader := ""
	if production {
		globalMax, authMax = 100, 5
		defaultOrigins = "https://brymix.vercel.app"
		proxyHeader = "X-Forwarded-For"
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "brymix-dashboard-bff"),
			Env:                   env,
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "5000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			ProxyHeader:           getEnv("PROXY_HEADER", proxyHeader),
			TrustedProxies:        splitList(os.Getenv("TRUSTED_PROXIES")),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "bff"),
		},
		Logger: LoggerConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			Service: getEnv("APP_NAME", "brymix-dashboard-bff"),
		},
		Auth: AuthConfig{
			AccessSecret:      getEnv("JWT_SECRET", devAccessSecret),
			RefreshSecret:     getEnv("JWT_REFRESH_SECRET", devRefreshSecret),
			AccessTokenTTL:    time.Duration(getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 15)) * time.Minute,
			RefreshTokenTTL:   time.Duration(getEnvAsInt("AUTH_REFRESH_TOKEN_TTL_HOURS", 7*24)) * time.Hour,
			BcryptCost:        getEnvAsInt("AUTH_BCRYPT_COST", 12),
			LockoutThreshold:  getEnvAsInt("AUTH_LOCKOUT_THRESHOLD", 5),
			LockoutDuration:   time.Duration(getEnvAsInt("AUTH_LOCKOUT_MINUTES", 120)) * time.Minute,
			PasswordMinLength: getEnvAsInt("AUTH_PASSWORD_MIN_LENGTH", 8),
		},
		TwoFactor: TwoFactorConfig{
			Issuer:          getEnv("TWO_FACTOR_ISSUER", "Brymix Dashboard"),
			PeriodSeconds:   getEnvAsInt("TWO_FACTOR_PERIOD_SECONDS", 30),
			Window:          getEnvAsInt("TWO_FACTOR_WINDOW", 2),
			BackupCodeCount: getEnvAsInt("TWO_FACTOR_BACKUP_CODES", 8),
			QRCodeSize:      getEnvAsInt("TWO_FACTOR_QR_SIZE", 256),
		},
		RateLimit: RateLimitConfig{
			Enabled:     getEnvAsBool("RATE_LIMIT_ENABLED", true),
			Window:      time.Duration(getEnvAsInt("RATE_LIMIT_WINDOW_MS", 15*60*1000)) * time.Millisecond,
			MaxRequests: getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", globalMax),
			AuthMax:     getEnvAsInt("AUTH_RATE_LIMIT_MAX", authMax),
		},
		CORS: CORSConfig{
			Origins: splitList(getEnv("CORS_ORIGINS", defaultOrigins)),
		},
		Upstream: UpstreamConfig{
			BaseURL:        strings.TrimRight(getEnv("FASTAPI_URL", "http://localhost:8000"), "/"),
			TimeoutSeconds: getEnvAsInt("UPSTREAM_TIMEOUT_SECONDS", 10),
			Concurrency:    getEnvAsInt("UPSTREAM_CONCURRENCY", 4),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the auth subsystem cannot run safely with.
func (c *Config) Validate() error {
	a := c.Auth
	switch {
	case a.AccessSecret == "" || a.RefreshSecret == "":
		return errors.New("JWT_SECRET and JWT_REFRESH_SECRET are required")
	case a.AccessSecret == a.RefreshSecret:
		return errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	case a.AccessTokenTTL <= 0 || a.RefreshTokenTTL <= 0:
		return errors.New("token TTLs must be positive")
	case a.LockoutThreshold < 1:
		return errors.New("AUTH_LOCKOUT_THRESHOLD must be at least 1")
	case a.LockoutDuration <= 0:
		return errors.New("AUTH_LOCKOUT_MINUTES must be positive")
	}
	if c.App.IsProduction() && (a.AccessSecret == devAccessSecret || a.RefreshSecret == devRefreshSecret) {
		return errors.New("development JWT secrets are not allowed in production")
	}
	switch tf := c.TwoFactor; {
	case tf.BackupCodeCount < 1:
		return errors.New("TWO_FACTOR_BACKUP_CODES must be at least 1")
	case tf.PeriodSeconds <= 0:
		return errors.New("TWO_FACTOR_PERIOD_SECONDS must be positive")
	case tf.Window < 0:
		return errors.New("TWO_FACTOR_WINDOW must not be negative")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsProduction reports whether the service runs with production defaults.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the per-request timeout for upstream calls.
func (u UpstreamConfig) Timeout() time.Duration {
	if u.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(u.TimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
