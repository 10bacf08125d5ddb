// Package identitytest provides in-memory stand-ins for the remote identity
// provider and profile document store.
package identitytest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/todo-session/internal/domain"
	"github.com/prperemyshlev/todo-session/internal/identity"
	"github.com/prperemyshlev/todo-session/pkg/observer"
)

type account struct {
	domain.Account
	password string
}

// Provider is an in-memory identity.Provider. Every method call is counted
// so tests can assert that nothing reached the remote side.
type Provider struct {
	mu       sync.Mutex
	accounts map[string]*account // by email
	current  *domain.Account
	calls    map[string]int
	resets   []string

	// Failures, keyed by method name, are returned instead of doing the work
	Failures map[string]error

	hub *observer.Hub[*domain.Account]
}

func NewProvider() *Provider {
	return &Provider{
		accounts: make(map[string]*account),
		calls:    make(map[string]int),
		Failures: make(map[string]error),
		hub:      observer.New[*domain.Account](nil),
	}
}

// Close stops event delivery once queued events are delivered
func (p *Provider) Close() {
	p.hub.Close()
	<-p.hub.Done()
}

// Calls returns how many times method was invoked
func (p *Provider) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

// TotalCalls returns the number of remote calls of any kind
func (p *Provider) TotalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.calls {
		total += n
	}
	return total
}

// Resets returns the emails a password reset was requested for
func (p *Provider) Resets() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.resets...)
}

// Seed adds an account without signing it in
func (p *Provider) Seed(email, password, displayName string) *domain.Account {
	p.mu.Lock()
	defer p.mu.Unlock()
	a := &account{
		Account: domain.Account{
			UID:         uuid.NewString(),
			Email:       email,
			DisplayName: displayName,
			CreatedAt:   time.Now().UTC(),
		},
		password: password,
	}
	p.accounts[email] = a
	return copyAccount(&a.Account)
}

// Emit pushes a session change as if it came from the remote side, e.g. an
// external sign-out (nil) or a refreshed account
func (p *Provider) Emit(a *domain.Account) {
	p.mu.Lock()
	p.current = copyAccount(a)
	p.mu.Unlock()
	p.hub.Publish(copyAccount(a))
}

func (p *Provider) begin(method string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[method]++
	return p.Failures[method]
}

func (p *Provider) CreateAccount(_ context.Context, email, password string) (*domain.Account, error) {
	if err := p.begin("CreateAccount"); err != nil {
		return nil, err
	}
	if !strings.Contains(email, "@") {
		return nil, identity.ErrInvalidEmail
	}
	if len(password) < 6 {
		return nil, identity.ErrWeakPassword
	}

	p.mu.Lock()
	if _, exists := p.accounts[email]; exists {
		p.mu.Unlock()
		return nil, identity.ErrEmailAlreadyRegistered
	}
	p.mu.Unlock()

	created := p.Seed(email, password, "")
	p.Emit(created)
	return created, nil
}

func (p *Provider) SignIn(_ context.Context, email, password string) (*domain.Account, error) {
	if err := p.begin("SignIn"); err != nil {
		return nil, err
	}

	p.mu.Lock()
	a, ok := p.accounts[email]
	p.mu.Unlock()
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	if a.password != password {
		return nil, identity.ErrWrongPassword
	}

	p.Emit(&a.Account)
	return copyAccount(&a.Account), nil
}

func (p *Provider) SignOut(context.Context) error {
	if err := p.begin("SignOut"); err != nil {
		return err
	}
	p.Emit(nil)
	return nil
}

func (p *Provider) UpdateDisplayName(_ context.Context, displayName string) (*domain.Account, error) {
	if err := p.begin("UpdateDisplayName"); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return nil, identity.ErrNotAuthenticated
	}
	a, ok := p.accounts[p.current.Email]
	if !ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("account %s vanished", p.current.Email)
	}
	a.DisplayName = displayName
	updated := copyAccount(&a.Account)
	p.mu.Unlock()

	p.Emit(updated)
	return updated, nil
}

func (p *Provider) SendPasswordReset(_ context.Context, email string) error {
	if err := p.begin("SendPasswordReset"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets = append(p.resets, email)
	return nil
}

func (p *Provider) CurrentAccount() *domain.Account {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyAccount(p.current)
}

// OnAccountChanged delivers the current session first, like a provider that
// has already restored its local session
func (p *Provider) OnAccountChanged(fn func(*domain.Account)) func() {
	return p.hub.SubscribeWith(fn, p.CurrentAccount())
}

func copyAccount(a *domain.Account) *domain.Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// Documents is an in-memory identity.ProfileDocuments
type Documents struct {
	mu       sync.Mutex
	profiles map[string]domain.Profile
	calls    int

	// Err, when set, fails every call
	Err error
}

func NewDocuments() *Documents {
	return &Documents{profiles: make(map[string]domain.Profile)}
}

func (d *Documents) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *Documents) Put(_ context.Context, profile *domain.Profile) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.Err != nil {
		return d.Err
	}
	d.profiles[profile.ID] = *profile
	return nil
}

func (d *Documents) Get(_ context.Context, userID string) (*domain.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.Err != nil {
		return nil, d.Err
	}
	p, ok := d.profiles[userID]
	if !ok {
		return nil, identity.ErrProfileNotFound
	}
	return &p, nil
}

func (d *Documents) UpdateDisplayName(_ context.Context, userID, displayName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.Err != nil {
		return d.Err
	}
	p, ok := d.profiles[userID]
	if !ok {
		return identity.ErrProfileNotFound
	}
	p.DisplayName = displayName
	d.profiles[userID] = p
	return nil
}

var (
	_ identity.Provider         = (*Provider)(nil)
	_ identity.ProfileDocuments = (*Documents)(nil)
)
