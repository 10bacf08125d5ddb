package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/todo-session/internal/domain"
	"github.com/prperemyshlev/todo-session/internal/dto"
	"github.com/prperemyshlev/todo-session/internal/identity"
	"github.com/prperemyshlev/todo-session/internal/localstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sessionKey = "@auth_session"

var createdAt = time.Date(2024, 3, 9, 14, 30, 5, 0, time.UTC)

type backendUser struct {
	id          string
	email       string
	password    string
	displayName string
}

// fakeBackend implements the subset of the todo API the client uses
type fakeBackend struct {
	mu        sync.Mutex
	users     map[string]*backendUser // by email
	access    map[string]string       // token -> user id
	refresh   map[string]string
	profiles  map[string]dto.ProfileResponse
	todos     map[string]dto.TodoResponse
	refreshes int
	down      bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		users:    make(map[string]*backendUser),
		access:   make(map[string]string),
		refresh:  make(map[string]string),
		profiles: make(map[string]dto.ProfileResponse),
		todos:    make(map[string]dto.TodoResponse),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, dto.ErrorResponse{Error: http.StatusText(status), Message: code, Code: code})
}

func (b *fakeBackend) userByID(id string) *backendUser {
	for _, u := range b.users {
		if u.id == id {
			return u
		}
	}
	return nil
}

func (b *fakeBackend) issue(w http.ResponseWriter, status int, u *backendUser) {
	access, refresh := uuid.NewString(), uuid.NewString()
	b.access[access] = u.id
	b.refresh[refresh] = u.id
	writeJSON(w, status, dto.AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    900,
		User:         userResponse(u),
	})
}

func userResponse(u *backendUser) dto.UserResponse {
	return dto.UserResponse{ID: u.id, Email: u.email, DisplayName: u.displayName, CreatedAt: createdAt.Format(time.RFC3339Nano)}
}

// expireAccessTokens invalidates every access token, as if they timed out
func (b *fakeBackend) expireAccessTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.access = make(map[string]string)
}

func (b *fakeBackend) revokeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.access = make(map[string]string)
	b.refresh = make(map[string]string)
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	authed := func(next func(w http.ResponseWriter, r *http.Request, u *backendUser)) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			defer b.mu.Unlock()
			id, ok := b.access[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
			if !ok {
				writeError(w, http.StatusUnauthorized, "invalid-token")
				return
			}
			next(w, r, b.userByID(id))
		}
	}

	mux.HandleFunc("POST /auth/register", func(w http.ResponseWriter, r *http.Request) {
		var req dto.RegisterRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, exists := b.users[req.Email]; exists {
			writeError(w, http.StatusConflict, "email-already-in-use")
			return
		}
		u := &backendUser{id: uuid.NewString(), email: req.Email, password: req.Password}
		b.users[req.Email] = u
		b.issue(w, http.StatusCreated, u)
	})

	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req dto.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		defer b.mu.Unlock()
		u, ok := b.users[req.Email]
		switch {
		case !ok:
			writeError(w, http.StatusUnauthorized, "user-not-found")
		case u.password != req.Password:
			writeError(w, http.StatusUnauthorized, "wrong-password")
		default:
			b.issue(w, http.StatusOK, u)
		}
	})

	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var req dto.RefreshRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		defer b.mu.Unlock()
		b.refreshes++
		id, ok := b.refresh[req.RefreshToken]
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid-token")
			return
		}
		delete(b.refresh, req.RefreshToken)
		b.issue(w, http.StatusOK, b.userByID(id))
	})

	mux.HandleFunc("POST /auth/logout", authed(func(w http.ResponseWriter, r *http.Request, _ *backendUser) {
		if b.down {
			writeError(w, http.StatusInternalServerError, "internal")
			return
		}
		var req dto.RefreshRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		delete(b.refresh, req.RefreshToken)
		delete(b.access, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "ok"})
	}))

	mux.HandleFunc("GET /auth/me", authed(func(w http.ResponseWriter, _ *http.Request, u *backendUser) {
		writeJSON(w, http.StatusOK, userResponse(u))
	}))

	mux.HandleFunc("PATCH /auth/me", authed(func(w http.ResponseWriter, r *http.Request, u *backendUser) {
		var req dto.UpdateMeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		u.displayName = req.DisplayName
		writeJSON(w, http.StatusOK, userResponse(u))
	}))

	mux.HandleFunc("POST /auth/password-reset", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusAccepted, dto.SuccessResponse{Message: "sent"})
	})

	mux.HandleFunc("GET /profiles/{id}", authed(func(w http.ResponseWriter, r *http.Request, _ *backendUser) {
		p, ok := b.profiles[r.PathValue("id")]
		if !ok {
			writeError(w, http.StatusNotFound, "not-found")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}))

	mux.HandleFunc("PUT /profiles/{id}", authed(func(w http.ResponseWriter, r *http.Request, _ *backendUser) {
		var req dto.ProfileRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		p := dto.ProfileResponse{ID: r.PathValue("id"), Email: req.Email, DisplayName: req.DisplayName, CreatedAt: req.CreatedAt}
		b.profiles[p.ID] = p
		writeJSON(w, http.StatusOK, p)
	}))

	mux.HandleFunc("PATCH /profiles/{id}", authed(func(w http.ResponseWriter, r *http.Request, _ *backendUser) {
		p, ok := b.profiles[r.PathValue("id")]
		if !ok {
			writeError(w, http.StatusNotFound, "not-found")
			return
		}
		var req dto.ProfilePatchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		p.DisplayName = req.DisplayName
		b.profiles[p.ID] = p
		writeJSON(w, http.StatusOK, p)
	}))

	mux.HandleFunc("GET /todos", authed(func(w http.ResponseWriter, _ *http.Request, u *backendUser) {
		resp := dto.TodoListResponse{Todos: []dto.TodoResponse{}}
		for _, t := range b.todos {
			if t.UserID == u.id {
				resp.Todos = append(resp.Todos, t)
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}))

	mux.HandleFunc("POST /todos", authed(func(w http.ResponseWriter, r *http.Request, u *backendUser) {
		var req dto.CreateTodoRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		t := dto.TodoResponse{ID: uuid.NewString(), Title: req.Title, CreatedAt: createdAt.Format(time.RFC3339Nano), UserID: u.id}
		b.todos[t.ID] = t
		writeJSON(w, http.StatusCreated, t)
	}))

	mux.HandleFunc("PATCH /todos/{id}", authed(func(w http.ResponseWriter, r *http.Request, u *backendUser) {
		t, ok := b.todos[r.PathValue("id")]
		if !ok || t.UserID != u.id {
			writeError(w, http.StatusNotFound, "not-found")
			return
		}
		var req dto.UpdateTodoRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Completed != nil {
			t.Completed = *req.Completed
		}
		if req.Title != nil {
			t.Title = *req.Title
		}
		b.todos[t.ID] = t
		writeJSON(w, http.StatusOK, t)
	}))

	mux.HandleFunc("DELETE /todos/{id}", authed(func(w http.ResponseWriter, r *http.Request, u *backendUser) {
		t, ok := b.todos[r.PathValue("id")]
		if !ok || t.UserID != u.id {
			writeError(w, http.StatusNotFound, "not-found")
			return
		}
		delete(b.todos, t.ID)
		w.WriteHeader(http.StatusNoContent)
	}))

	return mux
}

// accountRecorder collects session change events
type accountRecorder struct {
	mu     sync.Mutex
	events []*domain.Account
}

func (r *accountRecorder) record(a *domain.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, a)
}

func (r *accountRecorder) snapshot() []*domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.Account(nil), r.events...)
}

func (r *accountRecorder) waitFor(t *testing.T, n int) []*domain.Account {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.snapshot()) >= n }, time.Second, 5*time.Millisecond)
	return r.snapshot()
}

func newTestClient(t *testing.T, backend *fakeBackend, store localstore.Store) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	c, err := New(server.URL, store, sessionKey, zap.NewNop(), WithHTTPClient(server.Client()))
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, server
}

func TestNew_NormalizesBaseURL(t *testing.T) {
	c, err := New(" localhost:8080/api/v1/ ", localstore.NewMemoryStore(), sessionKey, zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "http://localhost:8080/api/v1", c.baseURL)
}

func TestCreateAccountPublishesAndPersists(t *testing.T) {
	store := localstore.NewMemoryStore()
	c, _ := newTestClient(t, newFakeBackend(), store)
	ctx := context.Background()

	require.NoError(t, c.Restore(ctx))
	var rec accountRecorder
	defer c.OnAccountChanged(rec.record)()

	account, err := c.CreateAccount(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", account.Email)
	assert.Equal(t, createdAt, account.CreatedAt)

	events := rec.waitFor(t, 2)
	assert.Nil(t, events[0])
	require.NotNil(t, events[1])
	assert.Equal(t, account.UID, events[1].UID)

	raw, err := store.Get(ctx, sessionKey)
	require.NoError(t, err)
	var persisted storedSession
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	assert.NotEmpty(t, persisted.AccessToken)
	assert.NotEmpty(t, persisted.RefreshToken)
	assert.Equal(t, account.UID, persisted.Account.UID)
}

func TestErrorCodesMapToIdentityErrors(t *testing.T) {
	backend := newFakeBackend()
	c, _ := newTestClient(t, backend, localstore.NewMemoryStore())
	ctx := context.Background()

	_, err := c.CreateAccount(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)

	_, err = c.CreateAccount(ctx, "ana@example.com", "secret1")
	assert.ErrorIs(t, err, identity.ErrEmailAlreadyRegistered)

	_, err = c.SignIn(ctx, "bob@example.com", "secret1")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)

	_, err = c.SignIn(ctx, "ana@example.com", "wrong")
	assert.ErrorIs(t, err, identity.ErrWrongPassword)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestRestore(t *testing.T) {
	backend := newFakeBackend()
	store := localstore.NewMemoryStore()
	ctx := context.Background()

	first, _ := newTestClient(t, backend, store)
	account, err := first.CreateAccount(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)

	t.Run("valid session", func(t *testing.T) {
		c, _ := newTestClient(t, backend, store)
		var rec accountRecorder
		defer c.OnAccountChanged(rec.record)()

		require.NoError(t, c.Restore(ctx))

		events := rec.waitFor(t, 1)
		require.NotNil(t, events[0])
		assert.Equal(t, account.UID, events[0].UID)
		assert.Equal(t, account.UID, c.CurrentAccount().UID)
	})

	t.Run("expired access token is refreshed", func(t *testing.T) {
		backend.expireAccessTokens()
		c, _ := newTestClient(t, backend, store)

		require.NoError(t, c.Restore(ctx))
		assert.NotNil(t, c.CurrentAccount())
	})

	t.Run("revoked session ends", func(t *testing.T) {
		backend.revokeAll()
		c, _ := newTestClient(t, backend, store)
		var rec accountRecorder
		defer c.OnAccountChanged(rec.record)()

		require.NoError(t, c.Restore(ctx))

		events := rec.waitFor(t, 1)
		assert.Nil(t, events[0])
		assert.Nil(t, c.CurrentAccount())
		_, err := store.Get(ctx, sessionKey)
		assert.ErrorIs(t, err, localstore.ErrNotFound)
	})
}

func TestRestore_OfflineKeepsStoredSession(t *testing.T) {
	backend := newFakeBackend()
	store := localstore.NewMemoryStore()
	ctx := context.Background()

	first, server := newTestClient(t, backend, store)
	account, err := first.CreateAccount(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	server.Close()

	c, err := New(server.URL, store, sessionKey, zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Restore(ctx))
	require.NotNil(t, c.CurrentAccount())
	assert.Equal(t, account.UID, c.CurrentAccount().UID)
}

func TestRefreshHappensOnce(t *testing.T) {
	backend := newFakeBackend()
	c, _ := newTestClient(t, backend, localstore.NewMemoryStore())
	ctx := context.Background()

	_, err := c.CreateAccount(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	backend.expireAccessTokens()

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Todos().List(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, 1, backend.refreshes)
}

func TestRejectedRefreshSignsOut(t *testing.T) {
	backend := newFakeBackend()
	c, _ := newTestClient(t, backend, localstore.NewMemoryStore())
	ctx := context.Background()

	_, err := c.CreateAccount(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	var rec accountRecorder
	defer c.OnAccountChanged(rec.record)()
	rec.waitFor(t, 1)

	backend.revokeAll()
	_, err = c.Todos().List(ctx)
	assert.ErrorIs(t, err, identity.ErrNotAuthenticated)

	events := rec.waitFor(t, 2)
	assert.Nil(t, events[1])
	assert.Nil(t, c.CurrentAccount())
}

func TestSignOut(t *testing.T) {
	backend := newFakeBackend()
	store := localstore.NewMemoryStore()
	c, _ := newTestClient(t, backend, store)
	ctx := context.Background()

	_, err := c.CreateAccount(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)

	backend.mu.Lock()
	backend.down = true
	backend.mu.Unlock()
	assert.Error(t, c.SignOut(ctx))
	assert.NotNil(t, c.CurrentAccount())

	backend.mu.Lock()
	backend.down = false
	backend.mu.Unlock()
	require.NoError(t, c.SignOut(ctx))
	assert.Nil(t, c.CurrentAccount())
	_, err = store.Get(ctx, sessionKey)
	assert.ErrorIs(t, err, localstore.ErrNotFound)

	require.NoError(t, c.SignOut(ctx))
}

func TestUpdateDisplayName(t *testing.T) {
	c, _ := newTestClient(t, newFakeBackend(), localstore.NewMemoryStore())
	ctx := context.Background()

	_, err := c.UpdateDisplayName(ctx, "Ana")
	assert.ErrorIs(t, err, identity.ErrNotAuthenticated)

	_, err = c.CreateAccount(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)

	account, err := c.UpdateDisplayName(ctx, "Ana")
	require.NoError(t, err)
	assert.Equal(t, "Ana", account.DisplayName)
	assert.Equal(t, "Ana", c.CurrentAccount().DisplayName)
}

func TestDocuments(t *testing.T) {
	c, _ := newTestClient(t, newFakeBackend(), localstore.NewMemoryStore())
	ctx := context.Background()

	account, err := c.CreateAccount(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	docs := c.Documents()

	_, err = docs.Get(ctx, account.UID)
	assert.ErrorIs(t, err, identity.ErrProfileNotFound)
	assert.ErrorIs(t, docs.UpdateDisplayName(ctx, account.UID, "Ana"), identity.ErrProfileNotFound)

	require.NoError(t, docs.Put(ctx, &domain.Profile{ID: account.UID, Email: account.Email, DisplayName: "Ana", CreatedAt: createdAt}))
	require.NoError(t, docs.UpdateDisplayName(ctx, account.UID, "Ana Maria"))

	profile, err := docs.Get(ctx, account.UID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", profile.DisplayName)
	assert.Equal(t, createdAt, profile.CreatedAt)
}

func TestTodos(t *testing.T) {
	c, _ := newTestClient(t, newFakeBackend(), localstore.NewMemoryStore())
	ctx := context.Background()

	_, err := c.Todos().List(ctx)
	assert.ErrorIs(t, err, identity.ErrNotAuthenticated)

	_, err = c.CreateAccount(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	todos := c.Todos()

	created, err := todos.Create(ctx, "buy milk")
	require.NoError(t, err)
	assert.Equal(t, "buy milk", created.Title)

	done := true
	updated, err := todos.Update(ctx, created.ID, domain.TodoUpdate{Completed: &done})
	require.NoError(t, err)
	assert.True(t, updated.Completed)

	list, err := todos.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, todos.Delete(ctx, created.ID))
	assert.ErrorIs(t, todos.Delete(ctx, created.ID), ErrTodoNotFound)
}
