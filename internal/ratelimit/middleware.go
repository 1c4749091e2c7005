package ratelimit

import (
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/brymix/dashboard-bff/pkg/util"
)

// Local limits requests by client IP with an in-process limiter.
func Local(l *LocalLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		decision := l.Allow(c.IP())
		setHeaders(c, decision)
		if !decision.Allowed {
			return apperrors.NewRateLimited("too many requests, please try again later")
		}
		return c.Next()
	}
}

// Shared limits requests by client IP with the Redis limiter. When Redis is
// unreachable the request is let through and a warning is logged.
func Shared(l *RedisLimiter, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		decision, err := l.Allow(c.UserContext(), c.IP())
		if err != nil {
			logger.Warn("rate limiter unavailable; allowing request", zap.String("path", c.Path()), zap.Error(err))
			return c.Next()
		}
		setHeaders(c, decision)
		if !decision.Allowed {
			logger.Warn("rate limit exceeded", zap.String("ip", c.IP()), zap.String("path", c.Path()))
			return apperrors.NewRateLimited("too many authentication attempts, please try again later")
		}
		return c.Next()
	}
}

func setHeaders(c *fiber.Ctx, d Decision) {
	c.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if !d.Allowed {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retrySeconds(d.RetryAfter)))
	}
}

func retrySeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 1)
}
