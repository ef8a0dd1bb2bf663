package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// SimpleLimiter tracks one token-bucket limiter per key (IP or API-key user).
type SimpleLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// NewSimpleLimiter creates a new simple rate limiter.
func NewSimpleLimiter(r rate.Limit, b int) *SimpleLimiter {
	return &SimpleLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    b,
	}
}

// GetLimiter returns a limiter for a key, creating one on first use.
func (l *SimpleLimiter) GetLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = limiter
	}

	return limiter
}

// CleanupRoutine periodically drops all tracked limiters so idle keys don't
// accumulate forever.
func (l *SimpleLimiter) CleanupRoutine(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.mu.Lock()
			l.limiters = make(map[string]*rate.Limiter)
			l.mu.Unlock()
		}
	}
}

// SimpleRateLimit caps run submissions per caller: graph runs can hold an
// LLM call open for minutes, so a caller retrying a stuck request shouldn't
// be able to pile up concurrent engine runs.
func SimpleRateLimit(requestsPerSecond float64, burst int) echo.MiddlewareFunc {
	limiter := NewSimpleLimiter(rate.Limit(requestsPerSecond), burst)

	ctx := context.Background()
	go limiter.CleanupRoutine(ctx, 10*time.Minute)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/ok" || c.Path() == "/metrics" {
				return next(c)
			}

			key := c.RealIP()
			if userID := c.Get("user_id"); userID != nil {
				key = fmt.Sprintf("user:%v", userID)
			}

			l := limiter.GetLimiter(key)
			if !l.Allow() {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "rate_limit_exceeded",
					"message": "too many requests, slow down",
				})
			}

			return next(c)
		}
	}
}
