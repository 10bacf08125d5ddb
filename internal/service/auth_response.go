package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prperemyshlev/todo-session/internal/domain"
	"github.com/prperemyshlev/todo-session/internal/dto"
	"github.com/prperemyshlev/todo-session/internal/utils"
)

// AuthResponseWithRefreshToken contains auth response and refresh token
type AuthResponseWithRefreshToken struct {
	AuthResponse *dto.AuthResponse
	RefreshToken string
	ExpiresIn    int // Refresh token expiry in seconds
}

// generateAuthResponseWithRefreshToken issues a token pair and stores the refresh token hash
func (s *authService) generateAuthResponseWithRefreshToken(ctx context.Context, user *domain.Credential) (*AuthResponseWithRefreshToken, error) {
	accessToken, err := s.jwtManager.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	refreshTokenEntity := &domain.RefreshToken{
		UserID:    user.ID,
		TokenHash: utils.HashToken(refreshToken),
		ExpiresAt: time.Now().Add(s.jwtManager.RefreshTokenExpiry()),
	}
	if err := s.tokenRepo.Create(ctx, refreshTokenEntity); err != nil {
		return nil, fmt.Errorf("failed to save refresh token: %w", err)
	}

	return &AuthResponseWithRefreshToken{
		AuthResponse: &dto.AuthResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			TokenType:    "Bearer",
			ExpiresIn:    s.jwtManager.GetAccessTokenExpiry(),
			User:         userResponse(user),
		},
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.jwtManager.RefreshTokenExpiry().Seconds()),
	}, nil
}

func userResponse(user *domain.Credential) dto.UserResponse {
	response := dto.UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		CreatedAt:   user.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if user.LastLoginAt != nil {
		lastLogin := user.LastLoginAt.UTC().Format(time.RFC3339Nano)
		response.LastLoginAt = &lastLogin
	}
	return response
}
