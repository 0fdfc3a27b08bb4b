package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error classes. Every error returned by the core wraps exactly one of these,
// so callers can classify with errors.Is without knowing the concrete cause.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)

var (
	ErrBugNotFound        = fmt.Errorf("bug %w", ErrNotFound)
	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)
	ErrUsernameTaken      = fmt.Errorf("username already exists: %w", ErrConflict)
	ErrEmailTaken         = fmt.Errorf("email already registered: %w", ErrConflict)
	ErrReporterReferenced = fmt.Errorf("user is the reporter of existing bugs: %w", ErrConflict)
	ErrSelfDelete         = fmt.Errorf("cannot delete your own account: %w", ErrConflict)
)

var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrForbidden = errors.New("access forbidden")

// FieldViolation names one offending input field by its JSON name.
type FieldViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError reports malformed, missing or out-of-range input.
// It is never persisted and never cached.
type ValidationError struct {
	Violations []FieldViolation
}

// NewValidationError builds a ValidationError with a single violation.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Violations: []FieldViolation{{Field: field, Reason: reason}}}
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Field+" "+v.Reason)
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Unavailable marks err as a retryable store or cache failure.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}
