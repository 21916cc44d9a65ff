package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrValidation indicates rejected user input.
	ErrValidation = errors.New("validation failed")
	// ErrNotAuthenticated indicates an operation that needs a session.
	ErrNotAuthenticated = errors.New("not authenticated")
)
