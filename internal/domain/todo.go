package domain

import "time"

// Todo is a single todo item owned by a user
type Todo struct {
	ID        string    `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Completed bool      `json:"completed" db:"completed"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UserID    string    `json:"userId" db:"user_id"`
}

// TodoUpdate carries the mutable fields of a todo; nil fields are left untouched.
// The owner is not editable.
type TodoUpdate struct {
	Title     *string
	Completed *bool
}
