package identity

import (
	"errors"
)

// Errors a Provider reports for rejected requests. Source passes them through
// unchanged; anything else is wrapped in *UnexpectedError.
var (
	ErrInvalidEmail           = errors.New("invalid email")
	ErrWeakPassword           = errors.New("password is too weak")
	ErrEmailAlreadyRegistered = errors.New("this email is already registered")
	ErrUserNotFound           = errors.New("user not found")
	ErrWrongPassword          = errors.New("wrong password")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrNotAuthenticated       = errors.New("no user is currently authenticated")

	// ErrProfileNotFound is returned by ProfileDocuments when a user has no document
	ErrProfileNotFound = errors.New("profile not found")
)

var (
	registerErrors = []error{ErrInvalidEmail, ErrWeakPassword, ErrEmailAlreadyRegistered}
	loginErrors    = []error{ErrUserNotFound, ErrWrongPassword, ErrInvalidCredentials}
)

// UnexpectedError wraps a provider or document store fault outside the known set
type UnexpectedError struct {
	Op  string
	Err error
}

func (e *UnexpectedError) Error() string {
	if e.Err == nil || e.Err.Error() == "" {
		return e.Op + " failed"
	}
	return e.Err.Error()
}

func (e *UnexpectedError) Unwrap() error {
	return e.Err
}

// classify returns err when it is one of the known errors, or wraps it
func classify(op string, err error, known []error) error {
	for _, k := range known {
		if errors.Is(err, k) {
			return k
		}
	}
	var unexpected *UnexpectedError
	if errors.As(err, &unexpected) {
		return err
	}
	return &UnexpectedError{Op: op, Err: err}
}
