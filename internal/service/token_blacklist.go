package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prperemyshlev/todo-session/internal/utils"
	"github.com/prperemyshlev/todo-session/pkg/database"
)

// TokenBlacklistService keeps revoked tokens in Redis. Keys carry the token
// hash, never the token itself.
type TokenBlacklistService struct {
	redis *database.Redis
}

var _ TokenBlacklist = (*TokenBlacklistService)(nil)

// NewTokenBlacklistService creates a new token blacklist service
func NewTokenBlacklistService(redis *database.Redis) *TokenBlacklistService {
	return &TokenBlacklistService{redis: redis}
}

func blacklistKey(token string) string {
	return fmt.Sprintf("blacklist:token:%s", utils.HashToken(token))
}

// AddToken adds a token to the blacklist
func (s *TokenBlacklistService) AddToken(ctx context.Context, token string, expiry time.Duration) error {
	if err := s.redis.Client.Set(ctx, blacklistKey(token), "1", expiry).Err(); err != nil {
		return fmt.Errorf("failed to add token to blacklist: %w", err)
	}
	return nil
}

// IsTokenBlacklisted checks if a token is in the blacklist
func (s *TokenBlacklistService) IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	exists, err := s.redis.Client.Exists(ctx, blacklistKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	return exists > 0, nil
}
