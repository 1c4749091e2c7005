// Package ratelimit bounds request rates per client. RedisLimiter shares its
// counters across instances; LocalLimiter keeps token buckets in process.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLimiterUnavailable indicates the Redis backend could not be reached.
var ErrLimiterUnavailable = errors.New("rate limiter backend unavailable")

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RedisLimiter is a fixed-window counter. Each hit runs INCR, EXPIRE NX and
// PTTL in one MULTI/EXEC, so the first hit of a window always sets the TTL.
type RedisLimiter struct {
	redis  redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

// NewRedisLimiter creates a limiter allowing limit hits per window under prefix.
func NewRedisLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{redis: client, prefix: prefix, limit: limit, window: window}
}

func (l *RedisLimiter) key(subject string) string {
	return l.prefix + ":" + subject
}

// Allow records one hit for subject.
func (l *RedisLimiter) Allow(ctx context.Context, subject string) (Decision, error) {
	key := l.key(subject)

	var (
		incr *redis.IntCmd
		pttl *redis.DurationCmd
	)
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.window)
		pttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}

	count := incr.Val()
	decision := Decision{Limit: l.limit, Remaining: max(l.limit-int(count), 0)}
	if count <= int64(l.limit) {
		decision.Allowed = true
		return decision, nil
	}

	decision.RetryAfter = pttl.Val()
	if decision.RetryAfter <= 0 {
		decision.RetryAfter = l.window
	}
	return decision, nil
}

// Reset clears the counter for subject.
func (l *RedisLimiter) Reset(ctx context.Context, subject string) error {
	if err := l.redis.Del(ctx, l.key(subject)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	return nil
}
