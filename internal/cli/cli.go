// Package cli is the client's composition root and its interactive command
// loop. The loop stands in for the screens of the app: every command acts on
// the session layer, and the route guard moves the current screen.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/prperemyshlev/todo-session/internal/client"
	"github.com/prperemyshlev/todo-session/internal/config"
	"github.com/prperemyshlev/todo-session/internal/domain"
	"github.com/prperemyshlev/todo-session/internal/identity"
	"github.com/prperemyshlev/todo-session/internal/localstore"
	"github.com/prperemyshlev/todo-session/internal/routeguard"
	"github.com/prperemyshlev/todo-session/internal/session"
	"github.com/prperemyshlev/todo-session/pkg/database"
	"go.uber.org/zap"
)

// TodoStore is the signed-in user's todo collection
type TodoStore interface {
	List(ctx context.Context) ([]*domain.Todo, error)
	Create(ctx context.Context, title string) (*domain.Todo, error)
	Update(ctx context.Context, id string, update domain.TodoUpdate) (*domain.Todo, error)
	Delete(ctx context.Context, id string) error
}

// Deps are the collaborators of the client process
type Deps struct {
	Provider  identity.Provider
	Documents identity.ProfileDocuments
	Todos     TodoStore
	Store     localstore.Store
	// Restore, when set, restores the provider's persisted session after the
	// session layer has subscribed
	Restore func(ctx context.Context) error
}

// Keys name the local store entries
type Keys struct {
	Profile string
	Route   string
}

type App struct {
	logger     *zap.Logger
	out        *printer
	deps       Deps
	reconciler *session.Reconciler
	guard      *routeguard.Guard
	screen     *screen

	stopWatch func()
	closers   []func() error
}

// New wires the session layer over deps
func New(deps Deps, routes routeguard.Routes, keys Keys, logger *zap.Logger, out io.Writer) *App {
	p := &printer{w: out}
	cache := localstore.NewProfileCache(deps.Store, keys.Profile, logger)
	memory := localstore.NewRouteMemory(deps.Store, keys.Route, logger)
	source := identity.NewSource(deps.Provider, deps.Documents, cache, logger)

	sc := &screen{out: p, path: routes.Login}
	return &App{
		logger:     logger,
		out:        p,
		deps:       deps,
		reconciler: session.New(source, logger),
		guard:      routeguard.New(routes, memory, sc, logger),
		screen:     sc,
	}
}

// Build connects to the local store and the backend described by cfg
func Build(cfg *config.ClientConfig, logger *zap.Logger, out io.Writer) (*App, error) {
	var (
		store   localstore.Store
		closers []func() error
	)
	switch cfg.Local.Store {
	case "memory":
		store = localstore.NewMemoryStore()
	default:
		redis, err := database.NewRedis(cfg.Local.Redis.Address(), cfg.Local.Redis.Password, cfg.Local.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to local store: %w", err)
		}
		store = localstore.NewRedisStore(redis)
		closers = append(closers, redis.Close)
	}

	c, err := client.New(cfg.API.BaseURL, store, cfg.Local.SessionKey, logger, client.WithTimeout(cfg.API.Timeout.Duration))
	if err != nil {
		for _, closeFn := range closers {
			_ = closeFn()
		}
		return nil, err
	}

	app := New(Deps{
		Provider:  c,
		Documents: c.Documents(),
		Todos:     c.Todos(),
		Store:     store,
		Restore:   c.Restore,
	}, routeguard.Routes{
		Login:    cfg.Routes.Login,
		Register: cfg.Routes.Register,
		Landing:  cfg.Routes.Landing,
	}, Keys{
		Profile: cfg.Local.ProfileKey,
		Route:   cfg.Local.RouteKey,
	}, logger, out)
	app.closers = append([]func() error{func() error { c.Close(); return nil }}, closers...)
	return app, nil
}

// Start seeds the session from the cache, starts the guard on the login
// screen and restores the provider session in the background
func (a *App) Start(ctx context.Context) error {
	if err := a.reconciler.Start(ctx); err != nil {
		return err
	}
	a.guard.PathChanged(ctx, a.screen.Path())
	a.stopWatch = a.guard.Watch(ctx, a.reconciler)

	if a.deps.Restore != nil {
		go func() {
			if err := a.deps.Restore(ctx); err != nil {
				a.logger.Warn("Failed to restore session", zap.Error(err))
			}
		}()
	}
	return nil
}

// Close tears the session layer down. In-flight actions finish but their
// results are dropped.
func (a *App) Close() error {
	if a.stopWatch != nil {
		a.stopWatch()
	}
	a.reconciler.Stop()

	var errs []error
	for _, closeFn := range a.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}

// State is the current session state
func (a *App) State() session.State {
	return a.reconciler.State()
}

// Path is the screen currently shown
func (a *App) Path() string {
	return a.screen.Path()
}

// screen is the navigator: it holds the visible path and announces changes
type screen struct {
	out *printer

	mu   sync.Mutex
	path string
}

func (s *screen) Replace(path string) {
	s.mu.Lock()
	s.path = path
	s.mu.Unlock()
	s.out.printf("-> %s\n", path)
}

func (s *screen) set(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.path = path
}

func (s *screen) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// printer serializes writes from the command loop and the guard
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}
