package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prperemyshlev/todo-session/internal/domain"
	"github.com/prperemyshlev/todo-session/internal/repository"
)

type todoService struct {
	todos repository.TodoRepository
}

func NewTodoService(todos repository.TodoRepository) TodoService {
	return &todoService{todos: todos}
}

// List returns the user's todos, newest first
func (s *todoService) List(ctx context.Context, userID string) ([]*domain.Todo, error) {
	todos, err := s.todos.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	return todos, nil
}

func (s *todoService) Create(ctx context.Context, userID, title string) (*domain.Todo, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrInvalidTodo
	}

	todo := &domain.Todo{Title: title, UserID: userID}
	if err := s.todos.Create(ctx, todo); err != nil {
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}
	return todo, nil
}

func (s *todoService) Get(ctx context.Context, userID, id string) (*domain.Todo, error) {
	todo, err := s.todos.GetByID(ctx, id, userID)
	if err != nil {
		return nil, notFoundOr(err, "failed to get todo")
	}
	return todo, nil
}

func (s *todoService) Update(ctx context.Context, userID, id string, update domain.TodoUpdate) (*domain.Todo, error) {
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return nil, ErrInvalidTodo
		}
		update.Title = &title
	}

	todo, err := s.todos.Update(ctx, id, userID, update)
	if err != nil {
		return nil, notFoundOr(err, "failed to update todo")
	}
	return todo, nil
}

func (s *todoService) Delete(ctx context.Context, userID, id string) error {
	if err := s.todos.Delete(ctx, id, userID); err != nil {
		return notFoundOr(err, "failed to delete todo")
	}
	return nil
}

// notFoundOr maps a missing record to ErrNotFound and wraps anything else.
// Todos of other users are reported as missing.
func notFoundOr(err error, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}
