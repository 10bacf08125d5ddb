package repository

import (
	"context"

	"github.com/prperemyshlev/todo-session/internal/domain"
)

// UserRepository stores the identity provider's credentials
type UserRepository interface {
	Create(ctx context.Context, user *domain.Credential) error
	GetByEmail(ctx context.Context, email string) (*domain.Credential, error)
	GetByID(ctx context.Context, id string) (*domain.Credential, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id string) error
}

// TokenRepository defines methods for refresh token operations
type TokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	DeleteByUserID(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) error
}

// ProfileRepository is the per-user document store
type ProfileRepository interface {
	Upsert(ctx context.Context, profile *domain.Profile) error
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) error
}

// TodoRepository stores todos. Every lookup is scoped to the owner.
type TodoRepository interface {
	Create(ctx context.Context, todo *domain.Todo) error
	GetByID(ctx context.Context, id, userID string) (*domain.Todo, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Todo, error)
	Update(ctx context.Context, id, userID string, update domain.TodoUpdate) (*domain.Todo, error)
	Delete(ctx context.Context, id, userID string) error
}
