package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prperemyshlev/todo-session/pkg/database"
	"github.com/redis/go-redis/v9"
)

// RateLimitError is returned by Allow when the window is full
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter <= 0 {
		return "rate limit exceeded"
	}
	return fmt.Sprintf("rate limit exceeded, try again in %v", e.RetryAfter)
}

// RateLimiter implements a sliding window log in a Redis sorted set
type RateLimiter struct {
	redis *database.Redis
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(redis *database.Redis) *RateLimiter {
	return &RateLimiter{redis: redis}
}

func rateLimitKey(key string) string {
	return fmt.Sprintf("ratelimit:%s", key)
}

// Allow records a request for key and reports how many remain in the window.
// A full window returns *RateLimitError.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	now := time.Now()
	redisKey := rateLimitKey(key)

	count, err := r.count(ctx, redisKey, now, window)
	if err != nil {
		return 0, err
	}

	if count >= int64(limit) {
		oldest, err := r.redis.Client.ZRangeWithScores(ctx, redisKey, 0, 0).Result()
		if err == nil && len(oldest) > 0 {
			oldestTime := time.UnixMilli(int64(oldest[0].Score))
			return 0, &RateLimitError{RetryAfter: (window - now.Sub(oldestTime)).Round(time.Second)}
		}
		return 0, &RateLimitError{}
	}

	pipe := r.redis.Client.TxPipeline()
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	pipe.Expire(ctx, redisKey, window+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to add entry: %w", err)
	}

	return limit - int(count) - 1, nil
}

func (r *RateLimiter) count(ctx context.Context, redisKey string, now time.Time, window time.Duration) (int64, error) {
	windowStart := now.Add(-window)

	err := r.redis.Client.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart.UnixMilli(), 10)).Err()
	if err != nil {
		return 0, fmt.Errorf("failed to clean old entries: %w", err)
	}

	count, err := r.redis.Client.ZCard(ctx, redisKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}
