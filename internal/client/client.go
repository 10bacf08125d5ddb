// Package client talks to the todo backend over HTTP. Client is the remote
// identity provider of the session layer: it holds the signed-in session,
// persists it in the local store so it survives restarts, and publishes every
// session change to its subscribers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prperemyshlev/todo-session/internal/domain"
	"github.com/prperemyshlev/todo-session/internal/dto"
	"github.com/prperemyshlev/todo-session/internal/identity"
	"github.com/prperemyshlev/todo-session/internal/localstore"
	"github.com/prperemyshlev/todo-session/pkg/observer"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "http://localhost:8080/api/v1"
	defaultTimeout = 15 * time.Second
)

// Client is an identity.Provider backed by the todo backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      localstore.Store
	sessionKey string
	logger     *zap.Logger
	hub        *observer.Hub[*domain.Account]

	mu       sync.Mutex
	session  *storedSession
	restored bool

	// refreshMu serializes token refreshes so a rotated refresh token is
	// never presented twice
	refreshMu sync.Mutex
}

var _ identity.Provider = (*Client)(nil)

// Option customises client instantiation
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New constructs a Client for the API at base. The session is persisted in
// store under sessionKey; call Restore before relying on CurrentAccount.
func New(base string, store localstore.Store, sessionKey string, logger *zap.Logger, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}

	c := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		store:      store,
		sessionKey: sessionKey,
		logger:     logger,
		hub:        observer.New[*domain.Account](logger),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close stops session change delivery and waits for queued changes
func (c *Client) Close() {
	c.hub.Close()
	<-c.hub.Done()
}

// APIError represents an error response from the API. It unwraps to the
// identity error matching its code, if any.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return e.Message
}

var codeErrors = map[string]error{
	"invalid-email":        identity.ErrInvalidEmail,
	"weak-password":        identity.ErrWeakPassword,
	"email-already-in-use": identity.ErrEmailAlreadyRegistered,
	"user-not-found":       identity.ErrUserNotFound,
	"wrong-password":       identity.ErrWrongPassword,
	"invalid-credential":   identity.ErrInvalidCredentials,
	"invalid-token":        identity.ErrNotAuthenticated,
}

func (e *APIError) Unwrap() error {
	return codeErrors[e.Code]
}

func isUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return extractError(resp)
	}

	if v == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}

	data, err := io.ReadAll(resp.Body)
	if err != nil || len(data) == 0 {
		return apiErr
	}
	var payload dto.ErrorResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}
	apiErr.Code = payload.Code
	apiErr.Message = payload.Message
	if apiErr.Message == "" {
		apiErr.Message = payload.Error
	}
	return apiErr
}

// authorized performs a request as the signed-in user. An expired access
// token is refreshed once; when the refresh is rejected the session ends.
func (c *Client) authorized(ctx context.Context, method, path string, body, v any) error {
	token := c.accessToken()
	if token == "" {
		return identity.ErrNotAuthenticated
	}

	err := c.do(ctx, method, path, body, token, v)
	if !isUnauthorized(err) {
		return err
	}

	fresh, refreshErr := c.refresh(ctx, token)
	if refreshErr != nil {
		return refreshErr
	}
	return c.do(ctx, method, path, body, fresh, v)
}

// refresh exchanges the refresh token for a new pair unless another caller
// already replaced stale. It returns the access token to retry with.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return "", identity.ErrNotAuthenticated
	}
	if session.AccessToken != stale {
		return session.AccessToken, nil
	}

	var resp dto.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/refresh", dto.RefreshRequest{RefreshToken: session.RefreshToken}, "", &resp)
	if err != nil {
		if isUnauthorized(err) {
			c.logger.Info("Session expired, signing out")
			c.endSession(ctx)
			return "", identity.ErrNotAuthenticated
		}
		return "", err
	}

	account, err := accountFromUser(resp.User)
	if err != nil {
		return "", err
	}
	c.setSession(ctx, &storedSession{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		Account:      account,
	}, false)
	return resp.AccessToken, nil
}

func (c *Client) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

func accountFromUser(u dto.UserResponse) (*domain.Account, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse account creation time: %w", err)
	}
	return &domain.Account{
		UID:         u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   createdAt.UTC(),
	}, nil
}
