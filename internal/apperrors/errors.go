package apperrors

import (
	"errors"
	"fmt"
)

// Error kinds. Every domain error wraps exactly one of them, so callers can
// map any error to a transport status with a single errors.Is check.
var (
	ErrValidation     = errors.New("validation failed")
	ErrAuthentication = errors.New("unauthorized")
	ErrConflict       = errors.New("conflict")
	ErrNotFound       = errors.New("not found")
	ErrInternal       = errors.New("internal error")
)

var (
	ErrPasswordMismatch = fmt.Errorf("passwords do not match: %w", ErrValidation)
	ErrSamePassword     = fmt.Errorf("new password must be different: %w", ErrValidation)
	ErrSameUsername     = fmt.Errorf("username must be different: %w", ErrValidation)
	ErrSameName         = fmt.Errorf("name must be different: %w", ErrValidation)
	ErrInvalidEmail     = fmt.Errorf("invalid email: %w", ErrValidation)
	ErrInvalidUsername  = fmt.Errorf("invalid username: %w", ErrValidation)

	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", ErrAuthentication)
	ErrUserNotConfirmed   = fmt.Errorf("email not confirmed: %w", ErrAuthentication)

	// Token failures are reported to callers with one generic message but are
	// kept distinguishable for diagnostics
	ErrTokenExpired     = fmt.Errorf("token expired: %w", ErrAuthentication)
	ErrTokenInvalid     = fmt.Errorf("invalid token: %w", ErrAuthentication)
	ErrTokenBlacklisted = fmt.Errorf("token blacklisted: %w", ErrAuthentication)
	ErrStaleCredentials = fmt.Errorf("credentials version changed: %w", ErrAuthentication)

	ErrPasswordChanged = fmt.Errorf("password was changed: %w", ErrAuthentication)

	ErrEmailTaken    = fmt.Errorf("email already in use: %w", ErrConflict)
	ErrUsernameTaken = fmt.Errorf("username already in use: %w", ErrConflict)

	ErrUserNotFound = fmt.Errorf("user not found: %w", ErrNotFound)
)

// HintError is an authentication failure whose message is intentionally safe
// to show to the caller (the "you changed your password N days ago" hint)
type HintError struct {
	Msg string
	Err error
}

func (e *HintError) Error() string { return e.Msg }

func (e *HintError) Unwrap() error { return e.Err }
