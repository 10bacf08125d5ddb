package service

import (
	"context"
	"testing"
	"time"

	"github.com/prperemyshlev/todo-session/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTodoService_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryTodos()
	svc := NewTodoService(repo)

	first, err := svc.Create(ctx, "uid-1", "  buy milk ")
	require.NoError(t, err)
	assert.Equal(t, "buy milk", first.Title)
	assert.False(t, first.Completed)
	assert.Equal(t, "uid-1", first.UserID)

	// force a later creation time so ordering is deterministic
	second := &domain.Todo{Title: "call mom", UserID: "uid-1", CreatedAt: first.CreatedAt.Add(time.Second)}
	require.NoError(t, repo.Create(ctx, second))

	todos, err := svc.List(ctx, "uid-1")
	require.NoError(t, err)
	require.Len(t, todos, 2)
	assert.Equal(t, "call mom", todos[0].Title)

	done := true
	updated, err := svc.Update(ctx, "uid-1", first.ID, domain.TodoUpdate{Completed: &done})
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.Equal(t, "buy milk", updated.Title)

	require.NoError(t, svc.Delete(ctx, "uid-1", first.ID))
	_, err = svc.Get(ctx, "uid-1", first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTodoService_OwnerScoped(t *testing.T) {
	ctx := context.Background()
	svc := NewTodoService(newMemoryTodos())

	todo, err := svc.Create(ctx, "uid-1", "secret plan")
	require.NoError(t, err)

	_, err = svc.Get(ctx, "uid-2", todo.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	title := "hijacked"
	_, err = svc.Update(ctx, "uid-2", todo.ID, domain.TodoUpdate{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, "uid-2", todo.ID), ErrNotFound)

	todos, err := svc.List(ctx, "uid-2")
	require.NoError(t, err)
	assert.Empty(t, todos)
}

func TestTodoService_Validation(t *testing.T) {
	ctx := context.Background()
	svc := NewTodoService(newMemoryTodos())

	_, err := svc.Create(ctx, "uid-1", "   ")
	assert.ErrorIs(t, err, ErrInvalidTodo)

	todo, err := svc.Create(ctx, "uid-1", "task")
	require.NoError(t, err)

	blank := " "
	_, err = svc.Update(ctx, "uid-1", todo.ID, domain.TodoUpdate{Title: &blank})
	assert.ErrorIs(t, err, ErrInvalidTodo)
}
