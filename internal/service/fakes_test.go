package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/todo-session/internal/domain"
	"github.com/prperemyshlev/todo-session/internal/repository"
)

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]*domain.Credential
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: make(map[string]*domain.Credential)}
}

func (m *memoryUsers) Create(_ context.Context, user *domain.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return fmt.Errorf("user with email %s already exists: %w", user.Email, repository.ErrDuplicateEmail)
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			found := *u
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryUsers) GetByID(_ context.Context, id string) (*domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	found := *u
	return &found, nil
}

func (m *memoryUsers) update(id string, fn func(*domain.Credential)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(u)
	return nil
}

func (m *memoryUsers) UpdateDisplayName(_ context.Context, id, displayName string) error {
	return m.update(id, func(u *domain.Credential) { u.DisplayName = displayName })
}

func (m *memoryUsers) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return m.update(id, func(u *domain.Credential) { u.PasswordHash = passwordHash })
}

func (m *memoryUsers) UpdateLastLogin(_ context.Context, id string) error {
	now := time.Now().UTC()
	return m.update(id, func(u *domain.Credential) { u.LastLoginAt = &now })
}

type memoryTokens struct {
	mu     sync.Mutex
	tokens map[string]*domain.RefreshToken
}

func newMemoryTokens() *memoryTokens {
	return &memoryTokens{tokens: make(map[string]*domain.RefreshToken)}
}

func (m *memoryTokens) Create(_ context.Context, token *domain.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[token.TokenHash]; ok {
		return repository.ErrDuplicateToken
	}
	stored := *token
	m.tokens[token.TokenHash] = &stored
	return nil
}

func (m *memoryTokens) GetByTokenHash(_ context.Context, tokenHash string) (*domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	found := *t
	return &found, nil
}

func (m *memoryTokens) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[tokenHash]; !ok {
		return repository.ErrNotFound
	}
	delete(m.tokens, tokenHash)
	return nil
}

func (m *memoryTokens) DeleteByUserID(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for hash, t := range m.tokens {
		if t.UserID == userID {
			delete(m.tokens, hash)
		}
	}
	return nil
}

func (m *memoryTokens) DeleteExpired(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for hash, t := range m.tokens {
		if time.Now().After(t.ExpiresAt) {
			delete(m.tokens, hash)
		}
	}
	return nil
}

func (m *memoryTokens) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

type memoryBlacklist struct {
	mu     sync.Mutex
	tokens map[string]bool
}

func newMemoryBlacklist() *memoryBlacklist {
	return &memoryBlacklist{tokens: make(map[string]bool)}
}

func (m *memoryBlacklist) AddToken(_ context.Context, token string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = true
	return nil
}

func (m *memoryBlacklist) IsTokenBlacklisted(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[token], nil
}

type memoryResets struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newMemoryResets() *memoryResets {
	return &memoryResets{tokens: make(map[string]string)}
}

func (m *memoryResets) Save(_ context.Context, tokenHash, userID string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[tokenHash] = userID
	return nil
}

func (m *memoryResets) Consume(_ context.Context, tokenHash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.tokens[tokenHash]
	if !ok {
		return "", ErrInvalidResetToken
	}
	delete(m.tokens, tokenHash)
	return userID, nil
}

type sentMail struct {
	email string
	link  string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, email, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{email: email, link: link})
	return nil
}

type memoryProfiles struct {
	mu       sync.Mutex
	profiles map[string]*domain.Profile
}

func newMemoryProfiles() *memoryProfiles {
	return &memoryProfiles{profiles: make(map[string]*domain.Profile)}
}

func (m *memoryProfiles) Upsert(_ context.Context, profile *domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *profile
	m.profiles[profile.ID] = &stored
	return nil
}

func (m *memoryProfiles) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	found := *p
	return &found, nil
}

func (m *memoryProfiles) UpdateDisplayName(_ context.Context, id, displayName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.DisplayName = displayName
	return nil
}

type memoryTodos struct {
	mu    sync.Mutex
	todos map[string]*domain.Todo
}

func newMemoryTodos() *memoryTodos {
	return &memoryTodos{todos: make(map[string]*domain.Todo)}
}

func (m *memoryTodos) Create(_ context.Context, todo *domain.Todo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if todo.ID == "" {
		todo.ID = uuid.NewString()
	}
	if todo.CreatedAt.IsZero() {
		todo.CreatedAt = time.Now().UTC()
	}
	stored := *todo
	m.todos[todo.ID] = &stored
	return nil
}

func (m *memoryTodos) GetByID(_ context.Context, id, userID string) (*domain.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.todos[id]
	if !ok || t.UserID != userID {
		return nil, repository.ErrNotFound
	}
	found := *t
	return &found, nil
}

func (m *memoryTodos) ListByUser(_ context.Context, userID string) ([]*domain.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	todos := make([]*domain.Todo, 0)
	for _, t := range m.todos {
		if t.UserID == userID {
			found := *t
			todos = append(todos, &found)
		}
	}
	sort.Slice(todos, func(i, j int) bool { return todos[i].CreatedAt.After(todos[j].CreatedAt) })
	return todos, nil
}

func (m *memoryTodos) Update(_ context.Context, id, userID string, update domain.TodoUpdate) (*domain.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.todos[id]
	if !ok || t.UserID != userID {
		return nil, repository.ErrNotFound
	}
	if update.Title != nil {
		t.Title = *update.Title
	}
	if update.Completed != nil {
		t.Completed = *update.Completed
	}
	found := *t
	return &found, nil
}

func (m *memoryTodos) Delete(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.todos[id]
	if !ok || t.UserID != userID {
		return repository.ErrNotFound
	}
	delete(m.todos, id)
	return nil
}
