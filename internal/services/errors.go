package services

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation reports missing or malformed required input.
	ErrValidation = errors.New("missing required fields")
	// ErrDuplicateUsername reports that the username is already taken,
	// including by a soft-deleted account.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrNotFound reports an unknown id, or a login against an unknown or
	// soft-deleted account. Both login cases use this same error.
	ErrNotFound = errors.New("user not found")
	// ErrMissingCredentials reports a login without username or password.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrInvalidCredentials reports a password that does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// StoreError wraps an unexpected persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeError(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// resultLabel classifies an operation outcome for metrics.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAssetNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrDuplicateUsername),
		errors.Is(err, ErrMissingCredentials),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrUnsupportedMedia):
		return "rejected"
	default:
		return "error"
	}
}
