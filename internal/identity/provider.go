package identity

import (
	"context"

	"github.com/prperemyshlev/todo-session/internal/domain"
)

// Provider is the remote identity provider as seen by the session layer
type Provider interface {
	CreateAccount(ctx context.Context, email, password string) (*domain.Account, error)
	SignIn(ctx context.Context, email, password string) (*domain.Account, error)
	SignOut(ctx context.Context) error
	// UpdateDisplayName changes the display name on the signed-in account's auth record
	UpdateDisplayName(ctx context.Context, displayName string) (*domain.Account, error)
	SendPasswordReset(ctx context.Context, email string) error
	// CurrentAccount is the provider's locally held session, nil when signed out
	CurrentAccount() *domain.Account
	// OnAccountChanged delivers session changes in emission order and returns a disposer
	OnAccountChanged(fn func(*domain.Account)) (unsubscribe func())
}

// ProfileDocuments is the remote document store holding one profile per user id
type ProfileDocuments interface {
	Put(ctx context.Context, profile *domain.Profile) error
	// Get returns ErrProfileNotFound when the user has no document
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	UpdateDisplayName(ctx context.Context, userID, displayName string) error
}
