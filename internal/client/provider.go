package client

import (
	"context"
	"net/http"

	"github.com/prperemyshlev/todo-session/internal/domain"
	"github.com/prperemyshlev/todo-session/internal/dto"
	"go.uber.org/zap"
)

// CreateAccount registers a new account and signs it in
func (c *Client) CreateAccount(ctx context.Context, email, password string) (*domain.Account, error) {
	return c.authenticate(ctx, "/auth/register", dto.RegisterRequest{Email: email, Password: password})
}

// SignIn starts a session for an existing account
func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.Account, error) {
	return c.authenticate(ctx, "/auth/login", dto.LoginRequest{Email: email, Password: password})
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*domain.Account, error) {
	var resp dto.AuthResponse
	if err := c.do(ctx, http.MethodPost, path, body, "", &resp); err != nil {
		return nil, err
	}

	account, err := accountFromUser(resp.User)
	if err != nil {
		return nil, err
	}
	c.setSession(ctx, &storedSession{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		Account:      account,
	}, true)
	return copyAccount(account), nil
}

// SignOut revokes the session on the backend and drops it locally. A backend
// that already rejects the session counts as signed out; any other failure
// keeps the session.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return nil
	}

	err := c.authorized(ctx, http.MethodPost, "/auth/logout", dto.RefreshRequest{RefreshToken: session.RefreshToken}, nil)
	if err != nil && !isUnauthorized(err) && c.CurrentAccount() != nil {
		return err
	}
	if err != nil {
		c.logger.Info("Session already revoked on sign out", zap.Error(err))
	}

	c.endSession(ctx)
	return nil
}

// UpdateDisplayName changes the display name on the signed-in account
func (c *Client) UpdateDisplayName(ctx context.Context, displayName string) (*domain.Account, error) {
	var user dto.UserResponse
	if err := c.authorized(ctx, http.MethodPatch, "/auth/me", dto.UpdateMeRequest{DisplayName: displayName}, &user); err != nil {
		return nil, err
	}

	account, err := accountFromUser(user)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session != nil {
		c.setSession(ctx, &storedSession{
			AccessToken:  session.AccessToken,
			RefreshToken: session.RefreshToken,
			Account:      account,
		}, true)
	}
	return copyAccount(account), nil
}

// SendPasswordReset asks the backend to mail a reset link
func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/password-reset", dto.PasswordResetRequest{Email: email}, "", nil)
}
