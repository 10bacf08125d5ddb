package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prperemyshlev/todo-session/pkg/database"
	"github.com/redis/go-redis/v9"
)

// RedisResetTokenStore keeps password reset tokens in Redis with a TTL
type RedisResetTokenStore struct {
	redis *database.Redis
}

var _ ResetTokenStore = (*RedisResetTokenStore)(nil)

func NewRedisResetTokenStore(redis *database.Redis) *RedisResetTokenStore {
	return &RedisResetTokenStore{redis: redis}
}

func resetKey(tokenHash string) string {
	return fmt.Sprintf("password_reset:%s", tokenHash)
}

func (s *RedisResetTokenStore) Save(ctx context.Context, tokenHash, userID string, ttl time.Duration) error {
	if err := s.redis.Client.Set(ctx, resetKey(tokenHash), userID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}
	return nil
}

// Consume reads and deletes the token in one step so it works only once
func (s *RedisResetTokenStore) Consume(ctx context.Context, tokenHash string) (string, error) {
	userID, err := s.redis.Client.GetDel(ctx, resetKey(tokenHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrInvalidResetToken
		}
		return "", fmt.Errorf("failed to read reset token: %w", err)
	}
	return userID, nil
}
