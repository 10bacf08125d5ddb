package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/prperemyshlev/todo-session/internal/domain"
	"github.com/prperemyshlev/todo-session/internal/dto"
)

var ErrTodoNotFound = errors.New("todo not found")

// Todos is the signed-in user's todo collection
type Todos struct {
	client *Client
}

func (c *Client) Todos() *Todos {
	return &Todos{client: c}
}

func todoPath(id string) string {
	return "/todos/" + url.PathEscape(id)
}

func (t *Todos) List(ctx context.Context) ([]*domain.Todo, error) {
	var resp struct {
		Todos []*domain.Todo `json:"todos"`
	}
	if err := t.client.authorized(ctx, http.MethodGet, "/todos", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Todos, nil
}

func (t *Todos) Create(ctx context.Context, title string) (*domain.Todo, error) {
	var todo domain.Todo
	if err := t.client.authorized(ctx, http.MethodPost, "/todos", dto.CreateTodoRequest{Title: title}, &todo); err != nil {
		return nil, err
	}
	return &todo, nil
}

func (t *Todos) Get(ctx context.Context, id string) (*domain.Todo, error) {
	var todo domain.Todo
	if err := t.client.authorized(ctx, http.MethodGet, todoPath(id), nil, &todo); err != nil {
		return nil, notFound(err, ErrTodoNotFound)
	}
	return &todo, nil
}

func (t *Todos) Update(ctx context.Context, id string, update domain.TodoUpdate) (*domain.Todo, error) {
	var todo domain.Todo
	body := dto.UpdateTodoRequest{Title: update.Title, Completed: update.Completed}
	if err := t.client.authorized(ctx, http.MethodPatch, todoPath(id), body, &todo); err != nil {
		return nil, notFound(err, ErrTodoNotFound)
	}
	return &todo, nil
}

func (t *Todos) Delete(ctx context.Context, id string) error {
	return notFound(t.client.authorized(ctx, http.MethodDelete, todoPath(id), nil, nil), ErrTodoNotFound)
}
