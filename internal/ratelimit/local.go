package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalLimiter keeps one token bucket per subject. Buckets that have refilled
// completely are dropped during periodic cleanup.
type LocalLimiter struct {
	limiters    sync.Map // map[string]*rate.Limiter
	rate        rate.Limit
	burst       int
	limit       int
	mu          sync.Mutex
	lastCleanup time.Time
}

// NewLocalLimiter allows limit requests per window, all available as a burst.
func NewLocalLimiter(limit int, window time.Duration) *LocalLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &LocalLimiter{
		rate:        rate.Limit(float64(limit) / window.Seconds()),
		burst:       limit,
		limit:       limit,
		lastCleanup: time.Now(),
	}
}

// Allow takes one token for subject.
func (l *LocalLimiter) Allow(subject string) Decision {
	limiter := l.get(subject)
	if limiter.Allow() {
		return Decision{Allowed: true, Limit: l.limit, Remaining: int(limiter.Tokens())}
	}

	reservation := limiter.Reserve()
	delay := reservation.Delay()
	reservation.Cancel()
	return Decision{Limit: l.limit, RetryAfter: delay}
}

func (l *LocalLimiter) get(subject string) *rate.Limiter {
	if limiter, ok := l.limiters.Load(subject); ok {
		return limiter.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(l.rate, l.burst)
	actual, _ := l.limiters.LoadOrStore(subject, limiter)
	l.maybeCleanup()
	return actual.(*rate.Limiter)
}

func (l *LocalLimiter) maybeCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.lastCleanup) < 5*time.Minute {
		return
	}
	l.lastCleanup = time.Now()
	l.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(l.burst) {
			l.limiters.Delete(key)
		}
		return true
	})
}
