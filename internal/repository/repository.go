package repository

import (
	"github.com/prperemyshlev/todo-session/pkg/database"
)

// Repositories holds all repository interfaces
type Repositories struct {
	User    UserRepository
	Token   TokenRepository
	Profile ProfileRepository
	Todo    TodoRepository
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		User:    NewUserRepository(db),
		Token:   NewTokenRepository(db),
		Profile: NewProfileRepository(db),
		Todo:    NewTodoRepository(db),
	}
}
