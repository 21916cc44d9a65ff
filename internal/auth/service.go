package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-desk/internal/shared"
)

// ValidationError lists the form fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	return fmt.Sprintf("auth: invalid %s", strings.Join(keys, ", "))
}

func (e *ValidationError) Unwrap() error { return shared.ErrValidation }

// Service wraps account operations with input validation.
type Service struct {
	repo      Repository
	validator *validator.Validate
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validator: validator.New()}
}

// CurrentUser fetches the profile for the stored credential.
func (s *Service) CurrentUser(ctx context.Context) (*User, error) {
	return s.repo.CurrentUser(ctx)
}

// Login validates creds and exchanges them for a token. A reply without a
// token is treated as invalid credentials.
func (s *Service) Login(ctx context.Context, creds Credentials) (*LoginReply, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	if err := s.check(creds); err != nil {
		return nil, err
	}
	reply, err := s.repo.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	if reply.Credential() == "" {
		return nil, shared.ErrInvalidCredentials
	}
	return reply, nil
}

// Logout invalidates the server-side token.
func (s *Service) Logout(ctx context.Context) error {
	return s.repo.Logout(ctx)
}

// UpdateProfile validates and submits a profile change.
func (s *Service) UpdateProfile(ctx context.Context, update ProfileUpdate) (*User, error) {
	if err := s.check(update); err != nil {
		return nil, err
	}
	return s.repo.UpdateProfile(ctx, update)
}

// ChangePassword validates and submits a password change.
func (s *Service) ChangePassword(ctx context.Context, change PasswordChange) error {
	if err := s.check(change); err != nil {
		return err
	}
	return s.repo.ChangePassword(ctx, change)
}

func (s *Service) check(form any) error {
	err := s.validator.Struct(form)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fieldErr := range fieldErrs {
		out.Fields[fieldErr.Field()] = fieldMessage(fieldErr)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Enter a valid email address"
	case "min":
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "eqfield":
		return "Passwords do not match"
	case "nefield":
		return "New password must differ from the current one"
	default:
		return "Invalid value"
	}
}
