// Package identity wraps the remote identity provider for the session layer.
//
// Source maps provider accounts to domain users, merges the remote profile
// document into them, and keeps the local profile cache in step with every
// session change it observes. Cache writes are best effort: they are logged
// on failure and never fail or delay the authoritative path.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prperemyshlev/todo-session/internal/domain"
	"github.com/prperemyshlev/todo-session/internal/localstore"
	"go.uber.org/zap"
)

const cacheSyncTimeout = 2 * time.Second

// Source is the identity session source consumed by the session reconciler
type Source struct {
	provider Provider
	profiles ProfileDocuments
	cache    *localstore.ProfileCache
	logger   *zap.Logger
	now      func() time.Time
}

func NewSource(provider Provider, profiles ProfileDocuments, cache *localstore.ProfileCache, logger *zap.Logger) *Source {
	return &Source{
		provider: provider,
		profiles: profiles,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

// Register creates the remote account, names it, stores its profile document
// and caches the resulting user
func (s *Source) Register(ctx context.Context, email, password, displayName string) (*domain.User, error) {
	account, err := s.provider.CreateAccount(ctx, email, password)
	if err != nil {
		err = classify("register", err, registerErrors)
		if isUnexpected(err) {
			s.logger.Error("unexpected error registering user", zap.String("email", email), zap.Error(err))
		}
		return nil, err
	}

	account, err = s.provider.UpdateDisplayName(ctx, displayName)
	if err != nil {
		return nil, s.unexpected("register", fmt.Errorf("failed to set display name: %w", err))
	}

	createdAt := s.createdAt(account.CreatedAt)
	err = s.profiles.Put(ctx, &domain.Profile{
		ID:          account.UID,
		Email:       email,
		DisplayName: displayName,
		CreatedAt:   createdAt,
	})
	if err != nil {
		return nil, s.unexpected("register", fmt.Errorf("failed to store profile: %w", err))
	}

	user := &domain.User{
		ID:          account.UID,
		Email:       email,
		DisplayName: displayName,
		CreatedAt:   createdAt,
	}
	s.cache.Save(ctx, user)

	return user, nil
}

// Login signs in and completes the user from the profile document, falling
// back to the provider's own fields when the document has none
func (s *Source) Login(ctx context.Context, email, password string) (*domain.User, error) {
	account, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		err = classify("login", err, loginErrors)
		s.logger.Info("login rejected", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	profile, err := s.profiles.Get(ctx, account.UID)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return nil, s.unexpected("login", fmt.Errorf("failed to fetch profile: %w", err))
	}

	user := &domain.User{
		ID:          account.UID,
		Email:       account.Email,
		DisplayName: firstNonEmpty(profileName(profile), account.DisplayName, domain.DefaultDisplayName),
		CreatedAt:   s.createdAt(firstNonZero(profileCreatedAt(profile), account.CreatedAt)),
	}
	s.cache.Save(ctx, user)

	return user, nil
}

// Logout ends the remote session. The cache is cleared only after the
// provider confirms; a failed sign-out leaves it untouched.
func (s *Source) Logout(ctx context.Context) error {
	if err := s.provider.SignOut(ctx); err != nil {
		return s.unexpected("logout", err)
	}
	s.cache.Clear(ctx)
	return nil
}

// UpdateProfile renames the signed-in user on the auth record and the profile document
func (s *Source) UpdateProfile(ctx context.Context, displayName string) (*domain.User, error) {
	if s.provider.CurrentAccount() == nil {
		return nil, ErrNotAuthenticated
	}

	account, err := s.provider.UpdateDisplayName(ctx, displayName)
	if err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			return nil, ErrNotAuthenticated
		}
		return nil, s.unexpected("update profile", err)
	}

	createdAt := s.createdAt(account.CreatedAt)
	err = s.profiles.UpdateDisplayName(ctx, account.UID, displayName)
	if errors.Is(err, ErrProfileNotFound) {
		err = s.profiles.Put(ctx, &domain.Profile{
			ID:          account.UID,
			Email:       account.Email,
			DisplayName: displayName,
			CreatedAt:   createdAt,
		})
	}
	if err != nil {
		return nil, s.unexpected("update profile", fmt.Errorf("failed to update profile: %w", err))
	}

	user := &domain.User{
		ID:          account.UID,
		Email:       account.Email,
		DisplayName: displayName,
		CreatedAt:   createdAt,
	}
	s.cache.Save(ctx, user)

	return user, nil
}

// SendPasswordReset asks the provider to email a reset link; errors are returned as-is
func (s *Source) SendPasswordReset(ctx context.Context, email string) error {
	return s.provider.SendPasswordReset(ctx, email)
}

// CurrentUser maps the provider's local session, returning nil when there is
// none or it cannot be mapped
func (s *Source) CurrentUser() *domain.User {
	user, err := s.mapAccount(s.provider.CurrentAccount())
	if err != nil {
		s.logger.Error("failed to map current user", zap.Error(err))
		return nil
	}
	return user
}

// LoadCachedUserProfile returns the optimistic cached user, if any
func (s *Source) LoadCachedUserProfile(ctx context.Context) *domain.User {
	return s.cache.Load(ctx)
}

// OnAuthStateChanged calls fn with every authoritative session change.
// After fn returns, the profile cache is synchronized: saved for a user,
// cleared for nil. The returned disposer may be called any number of times.
func (s *Source) OnAuthStateChanged(fn func(*domain.User)) (unsubscribe func()) {
	dispose := s.provider.OnAccountChanged(func(account *domain.Account) {
		user, err := s.mapAccount(account)
		if err != nil {
			s.logger.Error("failed to map account from session change", zap.Error(err))
			user = nil
		}

		s.notify(fn, user)
		s.syncCache(user)
	})

	var once sync.Once
	return func() {
		once.Do(dispose)
	}
}

func (s *Source) notify(fn func(*domain.User), user *domain.User) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("auth state callback panicked", zap.Any("panic", r))
		}
	}()
	fn(user)
}

func (s *Source) syncCache(user *domain.User) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheSyncTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("profile cache sync panicked", zap.Any("panic", r))
		}
	}()

	if user == nil {
		s.cache.Clear(ctx)
		return
	}
	s.cache.Save(ctx, user)
}

func (s *Source) mapAccount(account *domain.Account) (*domain.User, error) {
	if account == nil {
		return nil, nil
	}
	if strings.TrimSpace(account.UID) == "" {
		return nil, errors.New("account has no uid")
	}

	return &domain.User{
		ID:          account.UID,
		Email:       account.Email,
		DisplayName: firstNonEmpty(account.DisplayName, domain.DefaultDisplayName),
		CreatedAt:   s.createdAt(account.CreatedAt),
	}, nil
}

func (s *Source) createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t
}

func (s *Source) unexpected(op string, err error) error {
	s.logger.Error("unexpected identity error", zap.String("op", op), zap.Error(err))
	return classify(op, err, nil)
}

func isUnexpected(err error) bool {
	var unexpected *UnexpectedError
	return errors.As(err, &unexpected)
}

func profileName(p *domain.Profile) string {
	if p == nil {
		return ""
	}
	return p.DisplayName
}

func profileCreatedAt(p *domain.Profile) time.Time {
	if p == nil {
		return time.Time{}
	}
	return p.CreatedAt
}

func firstNonZero(values ...time.Time) time.Time {
	for _, v := range values {
		if !v.IsZero() {
			return v
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
