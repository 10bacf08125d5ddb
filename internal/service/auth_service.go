package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prperemyshlev/todo-session/internal/domain"
	"github.com/prperemyshlev/todo-session/internal/dto"
	"github.com/prperemyshlev/todo-session/internal/repository"
	"github.com/prperemyshlev/todo-session/internal/utils"
	"github.com/prperemyshlev/todo-session/pkg/observability"
	"go.uber.org/zap"
)

// AuthOptions holds the tunables of the auth service
type AuthOptions struct {
	BCryptCost       int
	ResetTokenExpiry time.Duration
	ResetLinkBaseURL string
}

// authService implements AuthService interface
type authService struct {
	userRepo   repository.UserRepository
	tokenRepo  repository.TokenRepository
	jwtManager *utils.JWTManager
	blacklist  TokenBlacklist
	resets     ResetTokenStore
	mailer     Mailer
	metrics    *observability.AuthMetrics
	logger     *zap.Logger
	opts       AuthOptions
}

// NewAuthService creates a new auth service. metrics may be nil.
func NewAuthService(
	userRepo repository.UserRepository,
	tokenRepo repository.TokenRepository,
	jwtManager *utils.JWTManager,
	blacklist TokenBlacklist,
	resets ResetTokenStore,
	mailer Mailer,
	metrics *observability.AuthMetrics,
	logger *zap.Logger,
	opts AuthOptions,
) AuthService {
	return &authService{
		userRepo:   userRepo,
		tokenRepo:  tokenRepo,
		jwtManager: jwtManager,
		blacklist:  blacklist,
		resets:     resets,
		mailer:     mailer,
		metrics:    metrics,
		logger:     logger,
		opts:       opts,
	}
}

// Register creates an account without a display name; clients set it afterwards
func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (resp *AuthResponseWithRefreshToken, err error) {
	defer func() { s.metrics.Record(ctx, "register", err) }()

	if !utils.ValidateEmail(req.Email) {
		return nil, ErrInvalidEmail
	}
	if !utils.ValidatePassword(req.Password) {
		return nil, ErrWeakPassword
	}

	passwordHash, err := utils.HashPassword(req.Password, s.opts.BCryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.Credential{
		Email:        utils.SanitizeEmail(req.Email),
		PasswordHash: passwordHash,
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID))
	return s.generateAuthResponseWithRefreshToken(ctx, user)
}

// Login authenticates a user
func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (resp *AuthResponseWithRefreshToken, err error) {
	defer func() { s.metrics.Record(ctx, "login", err) }()

	if !utils.ValidateEmail(req.Email) {
		return nil, ErrInvalidEmail
	}

	user, err := s.userRepo.GetByEmail(ctx, utils.SanitizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !user.IsActive {
		return nil, ErrInvalidCredential
	}
	if !utils.CheckPasswordHash(req.Password, user.PasswordHash) {
		return nil, ErrWrongPassword
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("Failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}

	return s.generateAuthResponseWithRefreshToken(ctx, user)
}

// RefreshToken rotates a refresh token
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (resp *AuthResponseWithRefreshToken, err error) {
	defer func() { s.metrics.Record(ctx, "refresh", err) }()

	userID, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	tokenHash := utils.HashToken(refreshToken)
	dbToken, err := s.tokenRepo.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	if time.Now().After(dbToken.ExpiresAt) || dbToken.UserID != userID {
		return nil, ErrInvalidToken
	}

	blacklisted, err := s.blacklist.IsTokenBlacklisted(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	if blacklisted {
		return nil, ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInvalidCredential
	}

	s.revokeRefreshToken(ctx, refreshToken)
	return s.generateAuthResponseWithRefreshToken(ctx, user)
}

// Logout revokes the presented tokens. Unknown or foreign refresh tokens are ignored.
func (s *authService) Logout(ctx context.Context, userID, accessToken, refreshToken string) (err error) {
	defer func() { s.metrics.Record(ctx, "logout", err) }()

	if accessToken != "" {
		if err := s.blacklist.AddToken(ctx, accessToken, s.jwtManager.AccessTokenExpiry()); err != nil {
			s.logger.Warn("Failed to blacklist access token", zap.String("user_id", userID), zap.Error(err))
		}
	}

	if refreshToken == "" {
		return nil
	}

	dbToken, err := s.tokenRepo.GetByTokenHash(ctx, utils.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get token: %w", err)
	}
	if dbToken.UserID == userID {
		s.revokeRefreshToken(ctx, refreshToken)
	}

	return nil
}

// GetUser gets user information
func (s *authService) GetUser(ctx context.Context, userID string) (*dto.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	response := userResponse(user)
	return &response, nil
}

// UpdateDisplayName sets the display name on the auth record
func (s *authService) UpdateDisplayName(ctx context.Context, userID, displayName string) (resp *dto.UserResponse, err error) {
	defer func() { s.metrics.Record(ctx, "update_display_name", err) }()

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, ErrInvalidDisplayName
	}

	if err := s.userRepo.UpdateDisplayName(ctx, userID, displayName); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update display name: %w", err)
	}

	return s.GetUser(ctx, userID)
}

// RequestPasswordReset mails a reset link. Unknown emails succeed silently so
// the endpoint cannot be used to probe for accounts.
func (s *authService) RequestPasswordReset(ctx context.Context, email string) (err error) {
	defer func() { s.metrics.Record(ctx, "password_reset_request", err) }()

	if !utils.ValidateEmail(email) {
		return ErrInvalidEmail
	}
	email = utils.SanitizeEmail(email)

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("Password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	token, err := utils.NewOpaqueToken()
	if err != nil {
		return err
	}
	if err := s.resets.Save(ctx, utils.HashToken(token), user.ID, s.opts.ResetTokenExpiry); err != nil {
		return fmt.Errorf("failed to save reset token: %w", err)
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, s.resetLink(token)); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}
	return nil
}

// ConfirmPasswordReset sets a new password and signs the user out everywhere
func (s *authService) ConfirmPasswordReset(ctx context.Context, token, password string) (err error) {
	defer func() { s.metrics.Record(ctx, "password_reset_confirm", err) }()

	if !utils.ValidatePassword(password) {
		return ErrWeakPassword
	}

	userID, err := s.resets.Consume(ctx, utils.HashToken(token))
	if err != nil {
		return err
	}

	passwordHash, err := utils.HashPassword(password, s.opts.BCryptCost)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, passwordHash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.tokenRepo.DeleteByUserID(ctx, userID); err != nil {
		s.logger.Warn("Failed to revoke sessions after password reset", zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}

// ValidateToken validates an access token
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.TokenClaims, error) {
	blacklisted, err := s.blacklist.IsTokenBlacklisted(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	if blacklisted {
		return nil, ErrInvalidToken
	}

	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *authService) revokeRefreshToken(ctx context.Context, refreshToken string) {
	if err := s.blacklist.AddToken(ctx, refreshToken, s.jwtManager.RefreshTokenExpiry()); err != nil {
		s.logger.Warn("Failed to blacklist refresh token", zap.Error(err))
	}
	if err := s.tokenRepo.DeleteByTokenHash(ctx, utils.HashToken(refreshToken)); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("Failed to delete refresh token", zap.Error(err))
	}
}

func (s *authService) resetLink(token string) string {
	link, err := url.Parse(s.opts.ResetLinkBaseURL)
	if err != nil {
		return s.opts.ResetLinkBaseURL + "?token=" + url.QueryEscape(token)
	}
	query := link.Query()
	query.Set("token", token)
	link.RawQuery = query.Encode()
	return link.String()
}
