package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitRecorder counts rejected requests.
type RateLimitRecorder interface {
	RecordRateLimitHit()
}

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	// Limiter is the shared token bucket. A nil limiter allows everything.
	Limiter *rate.Limiter

	// Logger for logging rate limit events.
	Logger *zap.Logger

	// Recorder counts rejections.
	Recorder RateLimitRecorder

	// SkipPaths is a list of paths to skip rate limiting.
	SkipPaths []string
}

// NewLimiter creates a token bucket refilled at rps with capacity burst.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// RateLimit returns a middleware that applies a global rate limit.
func RateLimit(limiter *rate.Limiter) gin.HandlerFunc {
	return RateLimitWithConfig(RateLimitConfig{Limiter: limiter})
}

// RateLimitWithConfig returns a rate limit middleware with custom configuration.
func RateLimitWithConfig(config RateLimitConfig) gin.HandlerFunc {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	skipPaths := make(map[string]bool, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skipPaths[path] = true
	}

	return func(c *gin.Context) {
		if config.Limiter == nil || skipPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		if config.Limiter.Allow() {
			c.Next()
			return
		}

		retryAfter := retryAfterSeconds(config.Limiter.Limit())
		if config.Recorder != nil {
			config.Recorder.RecordRateLimitHit()
		}
		config.Logger.Debug("rate limit exceeded",
			zap.String("path", c.Request.URL.Path),
			zap.String("clientIP", c.ClientIP()),
		)

		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "Too Many Requests",
			"message":     "Rate limit exceeded",
			"retry_after": retryAfter,
		})
	}
}

// retryAfterSeconds is the time to refill one token, rounded up, at least 1.
func retryAfterSeconds(limit rate.Limit) int {
	if limit <= 0 || limit == rate.Inf {
		return 1
	}
	secs := int(math.Ceil(1 / float64(limit)))
	if secs < 1 {
		return 1
	}
	return secs
}
