// Package session holds the observable authentication state the
// presentation layer renders.
//
// The state is seeded optimistically from the cached profile and then
// overwritten by every authoritative event from the identity source. Once an
// authoritative event has been applied, a late cache read is ignored.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/prperemyshlev/todo-session/internal/domain"
	"github.com/prperemyshlev/todo-session/internal/utils"
	"github.com/prperemyshlev/todo-session/pkg/observer"
	"go.uber.org/zap"
)

var ErrAlreadyStarted = errors.New("session reconciler already started")

// Source is the identity session source the reconciler delegates to
type Source interface {
	Register(ctx context.Context, email, password, displayName string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*domain.User, error)
	Logout(ctx context.Context) error
	UpdateProfile(ctx context.Context, displayName string) (*domain.User, error)
	SendPasswordReset(ctx context.Context, email string) error
	LoadCachedUserProfile(ctx context.Context) *domain.User
	OnAuthStateChanged(fn func(*domain.User)) (unsubscribe func())
}

// State is the projection rendered by the presentation layer
type State struct {
	User    *domain.User
	Loading bool
	// Error is the message of the last failed action, empty when none
	Error string
}

func (s State) IsAuthenticated() bool {
	return s.User != nil
}

// Reconciler owns State. Actions never set State.User themselves; the user
// only changes through the source's subscription.
type Reconciler struct {
	source Source
	logger *zap.Logger
	hub    *observer.Hub[State]

	mu            sync.Mutex
	state         State
	authoritative bool
	started       bool
	stopped       bool
	unsubscribe   func()
}

func New(source Source, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		source: source,
		logger: logger,
		hub:    observer.New[State](logger),
		state:  State{Loading: true},
	}
}

// Start seeds the state from the profile cache and binds it to the live
// subscription. It runs once per Reconciler.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.started = true
	r.mu.Unlock()

	go r.seedFromCache(ctx)

	unsubscribe := r.source.OnAuthStateChanged(r.applyAuthoritative)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		unsubscribe()
		return nil
	}
	r.unsubscribe = unsubscribe
	return nil
}

// Stop disposes the subscription. No state update is applied afterwards.
// It does not wait for queued states to reach subscribers, so a Subscribe
// callback may call it.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	r.hub.Close()
}

// State returns a snapshot of the current state
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Reconciler) IsAuthenticated() bool {
	return r.State().IsAuthenticated()
}

// Subscribe calls fn with every state change, starting with the current state
func (r *Reconciler) Subscribe(fn func(State)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hub.SubscribeWith(fn, r.state)
}

func (r *Reconciler) seedFromCache(ctx context.Context) {
	cached := r.source.LoadCachedUserProfile(ctx)
	if cached == nil {
		return
	}

	r.update(func(s *State) bool {
		if r.authoritative {
			r.logger.Debug("ignoring cached profile read after authoritative event")
			return false
		}
		s.User = cached
		return true
	})
}

func (r *Reconciler) applyAuthoritative(user *domain.User) {
	r.update(func(s *State) bool {
		r.authoritative = true
		s.User = user
		s.Loading = false
		if user != nil {
			s.Error = ""
		}
		return true
	})
}

// update applies fn under the lock and publishes the result in order
func (r *Reconciler) update(fn func(*State) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	if fn(&r.state) {
		r.hub.Publish(r.state)
	}
}

// Register validates the input and creates an account
func (r *Reconciler) Register(ctx context.Context, email, password, displayName string) bool {
	return r.run(ctx, "register", func(ctx context.Context) error {
		email = strings.TrimSpace(email)
		displayName = strings.TrimSpace(displayName)
		if err := errors.Join(utils.CheckEmail(email), utils.CheckPassword(password), utils.CheckDisplayName(displayName)); err != nil {
			return firstError(err)
		}
		_, err := r.source.Register(ctx, email, password, displayName)
		return err
	})
}

func (r *Reconciler) Login(ctx context.Context, email, password string) bool {
	return r.run(ctx, "login", func(ctx context.Context) error {
		email = strings.TrimSpace(email)
		if err := utils.CheckEmail(email); err != nil {
			return err
		}
		if password == "" {
			return &utils.ValidationError{Field: "password", Message: "password is required"}
		}
		_, err := r.source.Login(ctx, email, password)
		return err
	})
}

func (r *Reconciler) Logout(ctx context.Context) bool {
	return r.run(ctx, "logout", r.source.Logout)
}

func (r *Reconciler) UpdateProfile(ctx context.Context, displayName string) bool {
	return r.run(ctx, "update profile", func(ctx context.Context) error {
		if err := utils.CheckDisplayName(displayName); err != nil {
			return err
		}
		_, err := r.source.UpdateProfile(ctx, strings.TrimSpace(displayName))
		return err
	})
}

func (r *Reconciler) SendPasswordResetEmail(ctx context.Context, email string) bool {
	return r.run(ctx, "password reset", func(ctx context.Context) error {
		email = strings.TrimSpace(email)
		if err := utils.CheckEmail(email); err != nil {
			return err
		}
		return r.source.SendPasswordReset(ctx, email)
	})
}

// run marks the state loading, performs action and records its outcome.
// A Reconciler stopped while the action was in flight keeps its state.
func (r *Reconciler) run(ctx context.Context, name string, action func(context.Context) error) bool {
	r.update(func(s *State) bool {
		s.Loading = true
		s.Error = ""
		return true
	})

	err := action(ctx)

	r.update(func(s *State) bool {
		if err != nil {
			s.Error = err.Error()
		}
		s.Loading = false
		return true
	})

	if err != nil {
		r.logger.Info("session action failed", zap.String("action", name), zap.Error(err))
		return false
	}
	return true
}

// firstError unwraps an errors.Join result to its first error so only one
// message is shown at a time
func firstError(err error) error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		if errs := joined.Unwrap(); len(errs) > 0 {
			return errs[0]
		}
	}
	return err
}
