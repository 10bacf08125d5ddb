package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/todo-session/internal/dto"
	"github.com/prperemyshlev/todo-session/internal/service"
	"go.uber.org/zap"
)

// Limiter records a request and returns the remaining budget, or
// *service.RateLimitError when the window is full
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (int, error)
}

// RateLimitMiddleware creates a rate limiting middleware. When the limiter
// itself fails the request is let through.
func RateLimitMiddleware(limiter Limiter, limit int, window time.Duration, keyFunc func(*gin.Context) string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.FullPath() + ":" + keyFunc(c)

		remaining, err := limiter.Allow(c.Request.Context(), key, limit, window)
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))

		var limited *service.RateLimitError
		switch {
		case errors.As(err, &limited):
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(limited.RetryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{
				Error:   "Too Many Requests",
				Message: limited.Error(),
				Code:    CodeTooManyRequests,
			})
			return
		case err != nil:
			logger.Warn("Rate limiter unavailable", zap.String("key", key), zap.Error(err))
		default:
			c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		}

		c.Next()
	}
}

// IPBasedKey extracts rate limit key from client IP. gin resolves
// X-Forwarded-For only from trusted proxies.
func IPBasedKey(c *gin.Context) string {
	return c.ClientIP()
}
