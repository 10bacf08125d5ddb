package service

import "errors"

// Errors returned by the services. Handlers map them to HTTP status codes and
// stable error codes.
var (
	ErrInvalidEmail       = errors.New("email format is not valid")
	ErrWeakPassword       = errors.New("password must be at least 6 characters long")
	ErrEmailInUse         = errors.New("email is already in use")
	ErrUserNotFound       = errors.New("no user with this email")
	ErrWrongPassword      = errors.New("wrong password")
	ErrInvalidCredential  = errors.New("invalid credential")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidResetToken  = errors.New("password reset link is invalid or has expired")
	ErrInvalidDisplayName = errors.New("display name must not be empty")
	ErrInvalidTodo        = errors.New("todo title must not be empty")
	ErrForbidden          = errors.New("access to this resource is not allowed")
	ErrNotFound           = errors.New("resource not found")
)
