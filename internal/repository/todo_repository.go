package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/todo-session/internal/domain"
	"github.com/prperemyshlev/todo-session/pkg/database"
)

type todoRepository struct {
	db *database.Postgres
}

func NewTodoRepository(db *database.Postgres) TodoRepository {
	return &todoRepository{db: db}
}

func (r *todoRepository) Create(ctx context.Context, todo *domain.Todo) error {
	query := `
		INSERT INTO todos (id, user_id, title, completed, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if todo.ID == "" {
		todo.ID = uuid.New().String()
	}
	if todo.CreatedAt.IsZero() {
		todo.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		todo.ID,
		todo.UserID,
		todo.Title,
		todo.Completed,
		todo.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create todo: %w", err)
	}
	return nil
}

func (r *todoRepository) GetByID(ctx context.Context, id, userID string) (*domain.Todo, error) {
	query := `SELECT id, user_id, title, completed, created_at FROM todos WHERE id = $1 AND user_id = $2`

	todo, err := scanTodo(r.db.DB.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("todo %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get todo: %w", err)
	}
	return todo, nil
}

// ListByUser returns the user's todos, newest first
func (r *todoRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Todo, error) {
	query := `
		SELECT id, user_id, title, completed, created_at
		FROM todos
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	defer rows.Close()

	todos := make([]*domain.Todo, 0)
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		todos = append(todos, todo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate todos: %w", err)
	}
	return todos, nil
}

// Update applies the non-nil fields and returns the stored todo
func (r *todoRepository) Update(ctx context.Context, id, userID string, update domain.TodoUpdate) (*domain.Todo, error) {
	query := `
		UPDATE todos
		SET title = COALESCE($3, title), completed = COALESCE($4, completed)
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, title, completed, created_at
	`

	var title sql.NullString
	if update.Title != nil {
		title = sql.NullString{String: *update.Title, Valid: true}
	}
	var completed sql.NullBool
	if update.Completed != nil {
		completed = sql.NullBool{Bool: *update.Completed, Valid: true}
	}

	todo, err := scanTodo(r.db.DB.QueryRowContext(ctx, query, id, userID, title, completed))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("todo %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}
	return todo, nil
}

func (r *todoRepository) Delete(ctx context.Context, id, userID string) error {
	result, err := r.db.DB.ExecContext(ctx, `DELETE FROM todos WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("todo %s not found: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (*domain.Todo, error) {
	todo := &domain.Todo{}
	if err := row.Scan(&todo.ID, &todo.UserID, &todo.Title, &todo.Completed, &todo.CreatedAt); err != nil {
		return nil, err
	}
	return todo, nil
}
