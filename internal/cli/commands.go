package cli

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/prperemyshlev/todo-session/internal/domain"
	"go.uber.org/zap"
)

const usage = `commands:
  register <email> <password> <display name>
  login <email> <password>
  logout
  reset <email>
  rename <display name>
  whoami
  go <path>        open a screen
  where            show the current screen
  todos            list todos
  add <title>
  done <id> | undo <id>
  edit <id> <title>
  rm <id>
  help
  quit
`

type command struct {
	minArgs int
	run     func(ctx context.Context, a *App, args []string) error
}

var commands = map[string]command{
	"register": {3, func(ctx context.Context, a *App, args []string) error {
		a.report(a.reconciler.Register(ctx, args[0], args[1], strings.Join(args[2:], " ")))
		return nil
	}},
	"login": {2, func(ctx context.Context, a *App, args []string) error {
		a.report(a.reconciler.Login(ctx, args[0], args[1]))
		return nil
	}},
	"logout": {0, func(ctx context.Context, a *App, _ []string) error {
		a.report(a.reconciler.Logout(ctx))
		return nil
	}},
	"reset": {1, func(ctx context.Context, a *App, args []string) error {
		if a.reconciler.SendPasswordResetEmail(ctx, args[0]) {
			a.out.printf("if %s has an account, a reset link is on its way\n", args[0])
			return nil
		}
		a.report(false)
		return nil
	}},
	"rename": {1, func(ctx context.Context, a *App, args []string) error {
		a.report(a.reconciler.UpdateProfile(ctx, strings.Join(args, " ")))
		return nil
	}},
	"whoami": {0, func(_ context.Context, a *App, _ []string) error {
		state := a.State()
		switch {
		case state.User != nil:
			a.out.printf("%s <%s> since %s\n", state.User.DisplayName, state.User.Email, state.User.CreatedAt.Format("2006-01-02"))
		case state.Loading:
			a.out.printf("checking session...\n")
		default:
			a.out.printf("signed out\n")
		}
		return nil
	}},
	"go": {1, func(ctx context.Context, a *App, args []string) error {
		path := args[0]
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		a.screen.set(path)
		a.guard.PathChanged(ctx, path)
		a.out.printf("at %s\n", a.Path())
		return nil
	}},
	"where": {0, func(_ context.Context, a *App, _ []string) error {
		a.out.printf("at %s\n", a.Path())
		return nil
	}},
	"todos": {0, func(ctx context.Context, a *App, _ []string) error {
		todos, err := a.deps.Todos.List(ctx)
		if err != nil {
			return err
		}
		if len(todos) == 0 {
			a.out.printf("no todos\n")
		}
		for _, t := range todos {
			a.printTodo(t)
		}
		return nil
	}},
	"add": {1, func(ctx context.Context, a *App, args []string) error {
		todo, err := a.deps.Todos.Create(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		a.printTodo(todo)
		return nil
	}},
	"done": {1, func(ctx context.Context, a *App, args []string) error {
		return a.setCompleted(ctx, args[0], true)
	}},
	"undo": {1, func(ctx context.Context, a *App, args []string) error {
		return a.setCompleted(ctx, args[0], false)
	}},
	"edit": {2, func(ctx context.Context, a *App, args []string) error {
		title := strings.Join(args[1:], " ")
		todo, err := a.deps.Todos.Update(ctx, args[0], domain.TodoUpdate{Title: &title})
		if err != nil {
			return err
		}
		a.printTodo(todo)
		return nil
	}},
	"rm": {1, func(ctx context.Context, a *App, args []string) error {
		if err := a.deps.Todos.Delete(ctx, args[0]); err != nil {
			return err
		}
		a.out.printf("deleted %s\n", args[0])
		return nil
	}},
}

// Run reads commands from in until quit, EOF or ctx is done
func (a *App) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	a.out.printf("type help for commands\n")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if a.Execute(ctx, line) {
				return nil
			}
		}
	}
}

// Execute runs one command line and reports whether the loop should end
func (a *App) Execute(ctx context.Context, line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "quit", "exit":
		return true
	case "help":
		a.out.printf("%s", usage)
		return false
	}

	cmd, ok := commands[name]
	if !ok {
		a.out.printf("unknown command %q, type help\n", name)
		return false
	}
	if len(args) < cmd.minArgs {
		a.out.printf("%s needs %d argument(s), type help\n", name, cmd.minArgs)
		return false
	}
	if err := cmd.run(ctx, a, args); err != nil {
		a.logger.Debug("command failed", zap.String("command", name), zap.Error(err))
		a.out.printf("error: %v\n", err)
	}
	return false
}

// report prints the outcome of a session action
func (a *App) report(ok bool) {
	if ok {
		a.out.printf("ok\n")
		return
	}
	a.out.printf("error: %s\n", a.State().Error)
}

func (a *App) setCompleted(ctx context.Context, id string, completed bool) error {
	todo, err := a.deps.Todos.Update(ctx, id, domain.TodoUpdate{Completed: &completed})
	if err != nil {
		return err
	}
	a.printTodo(todo)
	return nil
}

func (a *App) printTodo(t *domain.Todo) {
	mark := " "
	if t.Completed {
		mark = "x"
	}
	a.out.printf("[%s] %s  %s\n", mark, t.ID, t.Title)
}
