package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/brymix/dashboard-bff/internal/config"
)

const redisConnectTimeout = 3 * time.Second

// Redis holds the client shared by the rate limiters and the readiness check.
// Every key the service writes lives under KeyPrefix.
type Redis struct {
	Client    *redis.Client
	KeyPrefix string
}

// NewRedis builds the client and pings it once. An unreachable server is
// logged, not fatal: the shared limiter fails open until Redis returns.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	r := &Redis{Client: client, KeyPrefix: strings.TrimSuffix(cfg.KeyPrefix, ":")}

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()
	if err := r.Ping(ctx); err != nil {
		logger.Warn("redis unreachable; shared rate limits fail open", zap.String("addr", cfg.Addr), zap.Error(err))
	} else {
		logger.Info("connected to redis", zap.String("addr", cfg.Addr), zap.String("key_prefix", r.KeyPrefix))
	}
	return r
}

// Key joins parts under the service prefix, e.g. "bff:ratelimit:auth".
func (r *Redis) Key(parts ...string) string {
	if r.KeyPrefix == "" {
		return strings.Join(parts, ":")
	}
	return r.KeyPrefix + ":" + strings.Join(parts, ":")
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
