package service

import (
	"context"
	"time"

	"github.com/prperemyshlev/todo-session/internal/domain"
	"github.com/prperemyshlev/todo-session/internal/dto"
)

// AuthService is the identity provider: accounts, sessions and password resets
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*AuthResponseWithRefreshToken, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*AuthResponseWithRefreshToken, error)
	RefreshToken(ctx context.Context, refreshToken string) (*AuthResponseWithRefreshToken, error)
	Logout(ctx context.Context, userID, accessToken, refreshToken string) error
	GetUser(ctx context.Context, userID string) (*dto.UserResponse, error)
	UpdateDisplayName(ctx context.Context, userID, displayName string) (*dto.UserResponse, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, password string) error
	ValidateToken(ctx context.Context, token string) (*domain.TokenClaims, error)
}

// ProfileService is the document store for per-user profiles. Callers may
// only touch their own document.
type ProfileService interface {
	Get(ctx context.Context, requesterID, id string) (*domain.Profile, error)
	Put(ctx context.Context, requesterID string, profile *domain.Profile) (*domain.Profile, error)
	UpdateDisplayName(ctx context.Context, requesterID, id, displayName string) (*domain.Profile, error)
}

// TodoService manages the caller's todos
type TodoService interface {
	List(ctx context.Context, userID string) ([]*domain.Todo, error)
	Create(ctx context.Context, userID, title string) (*domain.Todo, error)
	Get(ctx context.Context, userID, id string) (*domain.Todo, error)
	Update(ctx context.Context, userID, id string, update domain.TodoUpdate) (*domain.Todo, error)
	Delete(ctx context.Context, userID, id string) error
}

// TokenBlacklist remembers revoked tokens until they would have expired
type TokenBlacklist interface {
	AddToken(ctx context.Context, token string, expiry time.Duration) error
	IsTokenBlacklisted(ctx context.Context, token string) (bool, error)
}

// ResetTokenStore keeps password reset tokens, by hash, until used or expired
type ResetTokenStore interface {
	Save(ctx context.Context, tokenHash, userID string, ttl time.Duration) error
	// Consume returns the user a token was issued to and invalidates it
	Consume(ctx context.Context, tokenHash string) (string, error)
}

// Mailer delivers password reset links
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, link string) error
}
