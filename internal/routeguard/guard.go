// Package routeguard decides where the client should be whenever the session
// or the current path changes.
package routeguard

import (
	"context"
	"strings"
	"sync"

	"github.com/prperemyshlev/todo-session/internal/domain"
	"github.com/prperemyshlev/todo-session/internal/session"
	"go.uber.org/zap"
)

// Navigator performs a replace navigation. It may report the new path back
// through Guard.PathChanged from inside Replace.
type Navigator interface {
	Replace(path string)
}

// Memory is the last-route store
type Memory interface {
	Save(ctx context.Context, path string)
	Load(ctx context.Context) (string, bool)
	Clear(ctx context.Context)
}

type Routes struct {
	Login    string
	Register string
	Landing  string
}

type Action int

const (
	// Wait means the session is still loading
	Wait Action = iota
	// Stay means the current path is already correct
	Stay
	// Remember means the current protected path was stored
	Remember
	// ToLogin means an unauthenticated session was sent to the login path
	ToLogin
	// Restore means an authenticated session left the auth group
	Restore
)

func (a Action) String() string {
	switch a {
	case Wait:
		return "wait"
	case Stay:
		return "stay"
	case Remember:
		return "remember"
	case ToLogin:
		return "to-login"
	case Restore:
		return "restore"
	default:
		return "unknown"
	}
}

// Decision is the outcome of one evaluation. Target is set when the guard
// navigated.
type Decision struct {
	Action Action
	Target string
}

// maxPasses bounds how often one call re-evaluates while other callers keep
// changing the signals; those callers evaluate the newer signals themselves
const maxPasses = 4

// Guard evaluates the session and path signals. Calls may arrive from several
// goroutines; an evaluation that finishes after the signals changed runs
// again on the latest ones, so route memory always ends up matching the
// newest session.
type Guard struct {
	routes Routes
	memory Memory
	nav    Navigator
	logger *zap.Logger

	mu      sync.Mutex
	user    *domain.User
	loading bool
	path    string
	version uint64
}

func New(routes Routes, memory Memory, nav Navigator, logger *zap.Logger) *Guard {
	return &Guard{
		routes:  routes,
		memory:  memory,
		nav:     nav,
		logger:  logger,
		loading: true,
	}
}

// Watch feeds every reconciler state into the guard until the returned
// function is called
func (g *Guard) Watch(ctx context.Context, r *session.Reconciler) (unsubscribe func()) {
	return r.Subscribe(func(s session.State) {
		g.SessionChanged(ctx, s)
	})
}

// SessionChanged records the session signals and evaluates
func (g *Guard) SessionChanged(ctx context.Context, state session.State) Decision {
	g.mu.Lock()
	if state.Loading != g.loading || (state.User == nil) != (g.user == nil) || userID(state.User) != userID(g.user) {
		g.version++
	}
	g.user = state.User
	g.loading = state.Loading
	g.mu.Unlock()

	return g.settle(ctx)
}

// PathChanged records the current path and evaluates
func (g *Guard) PathChanged(ctx context.Context, path string) Decision {
	g.mu.Lock()
	if path != g.path {
		g.version++
	}
	g.path = path
	g.mu.Unlock()

	return g.settle(ctx)
}

// Path returns the last path the guard saw or navigated to
func (g *Guard) Path() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.path
}

// InAuthGroup reports whether path is a login or registration path
func (g *Guard) InAuthGroup(path string) bool {
	return hasRoutePrefix(path, g.routes.Login) || hasRoutePrefix(path, g.routes.Register)
}

// settle evaluates the latest signals until no other call changed them
// during the evaluation. It returns the decision of the first pass.
func (g *Guard) settle(ctx context.Context) Decision {
	var first Decision
	for pass := 0; pass < maxPasses; pass++ {
		g.mu.Lock()
		user, loading, path, version := g.user, g.loading, g.path, g.version
		g.mu.Unlock()

		decision := g.evaluate(ctx, user, loading, path)
		if pass == 0 {
			first = decision
		}
		if decision.Target != "" {
			// the guard's own navigation
			version++
		}

		g.mu.Lock()
		changed := g.version != version
		g.mu.Unlock()
		if !changed {
			break
		}
		g.logger.Debug("route guard signals changed during evaluation", zap.Int("pass", pass+1))
	}
	return first
}

func (g *Guard) evaluate(ctx context.Context, user *domain.User, loading bool, path string) Decision {
	if loading {
		return Decision{Action: Wait}
	}

	inAuthGroup := g.InAuthGroup(path)

	if user == nil {
		g.memory.Clear(ctx)
		if inAuthGroup {
			return Decision{Action: Stay}
		}
		return g.navigate(ToLogin, g.routes.Login)
	}

	if !inAuthGroup {
		if path == "" {
			return Decision{Action: Stay}
		}
		g.memory.Save(ctx, path)
		return Decision{Action: Remember}
	}

	target := g.routes.Landing
	if stored, ok := g.memory.Load(ctx); ok && stored != "" && !g.InAuthGroup(stored) {
		target = stored
	}
	g.memory.Save(ctx, target)
	return g.navigate(Restore, target)
}

// navigate records target as the current path and replaces the screen
func (g *Guard) navigate(action Action, target string) Decision {
	g.mu.Lock()
	g.path = target
	g.version++
	g.mu.Unlock()

	g.logger.Debug("route guard redirect",
		zap.String("action", action.String()),
		zap.String("target", target),
	)
	g.nav.Replace(target)
	return Decision{Action: action, Target: target}
}

func userID(u *domain.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}

// hasRoutePrefix matches whole path segments so "/login" covers "/login/help"
// but not "/loginhelp"
func hasRoutePrefix(path, prefix string) bool {
	if prefix == "" || !strings.HasPrefix(path, prefix) {
		return false
	}
	rest := path[len(prefix):]
	return rest == "" || rest[0] == '/' || rest[0] == '?'
}
