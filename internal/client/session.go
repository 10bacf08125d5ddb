package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prperemyshlev/todo-session/internal/domain"
	"github.com/prperemyshlev/todo-session/internal/dto"
	"github.com/prperemyshlev/todo-session/internal/localstore"
	"go.uber.org/zap"
)

// storedSession is the persisted form of a signed-in session
type storedSession struct {
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
	Account      *domain.Account `json:"account"`
}

// Restore loads the persisted session and confirms it with the backend. A
// session the backend rejects ends; one that cannot be checked because the
// backend is unreachable is kept. Subscribers registered before Restore
// receive its outcome as their first event.
func (c *Client) Restore(ctx context.Context) error {
	session := c.loadSession(ctx)
	if session == nil {
		c.markRestored(nil)
		return nil
	}

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	var user dto.UserResponse
	err := c.authorized(ctx, http.MethodGet, "/auth/me", nil, &user)
	switch {
	case err == nil:
		account, parseErr := accountFromUser(user)
		if parseErr != nil {
			c.markRestored(session.Account)
			return parseErr
		}
		c.mu.Lock()
		current := c.session
		c.mu.Unlock()
		if current != nil {
			c.setSession(ctx, &storedSession{
				AccessToken:  current.AccessToken,
				RefreshToken: current.RefreshToken,
				Account:      account,
			}, false)
		}
		c.markRestored(c.CurrentAccount())
		return nil
	case isUnauthorized(err) || c.CurrentAccount() == nil:
		c.endSession(ctx)
		c.markRestored(nil)
		return nil
	default:
		c.logger.Warn("Backend unreachable, keeping stored session", zap.Error(err))
		c.markRestored(session.Account)
		return nil
	}
}

// markRestored publishes the restored session and switches OnAccountChanged
// to delivering the current account on subscription
func (c *Client) markRestored(account *domain.Account) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.restored {
		return
	}
	c.restored = true
	c.hub.Publish(copyAccount(account))
}

// CurrentAccount is the locally held session, nil when signed out
func (c *Client) CurrentAccount() *domain.Account {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return copyAccount(c.session.Account)
}

// OnAccountChanged delivers session changes in order. The first event is the
// current account, or the outcome of Restore if it has not finished yet.
func (c *Client) OnAccountChanged(fn func(*domain.Account)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.restored {
		return c.hub.Subscribe(fn)
	}
	var current *domain.Account
	if c.session != nil {
		current = copyAccount(c.session.Account)
	}
	return c.hub.SubscribeWith(fn, current)
}

// setSession replaces the session, persists it and, when publish is set,
// notifies subscribers of the account. A published session also completes
// restoration.
func (c *Client) setSession(ctx context.Context, session *storedSession, publish bool) {
	c.mu.Lock()
	c.session = session
	if publish {
		c.restored = true
		c.hub.Publish(copyAccount(session.Account))
	}
	c.mu.Unlock()

	c.saveSession(ctx, session)
}

// endSession drops the session locally and tells subscribers. Before Restore
// finishes the outcome is left to markRestored.
func (c *Client) endSession(ctx context.Context) {
	c.mu.Lock()
	hadSession := c.session != nil
	c.session = nil
	if hadSession && c.restored {
		c.hub.Publish(nil)
	}
	c.mu.Unlock()

	if err := c.store.Delete(ctx, c.sessionKey); err != nil {
		c.logger.Warn("Failed to delete stored session", zap.Error(err))
	}
}

func (c *Client) loadSession(ctx context.Context) *storedSession {
	raw, err := c.store.Get(ctx, c.sessionKey)
	if err != nil {
		if !errors.Is(err, localstore.ErrNotFound) {
			c.logger.Warn("Failed to read stored session", zap.Error(err))
		}
		return nil
	}

	var session storedSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil || session.Account == nil || session.RefreshToken == "" {
		c.logger.Warn("Discarding malformed stored session", zap.Error(err))
		return nil
	}
	return &session
}

func (c *Client) saveSession(ctx context.Context, session *storedSession) {
	payload, err := json.Marshal(session)
	if err != nil {
		c.logger.Warn("Failed to encode session", zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, c.sessionKey, string(payload)); err != nil {
		c.logger.Warn("Failed to persist session", zap.Error(err))
	}
}

func copyAccount(a *domain.Account) *domain.Account {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}
