package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrAccountLocked          = errors.New("account is locked")
	ErrAccountDisabled        = errors.New("account is disabled")
	ErrTokenInvalid           = errors.New("invalid or expired token")
	ErrDuplicateUsername      = errors.New("username is already taken")
	ErrDuplicateEmail         = errors.New("email is already in use")
	ErrDuplicateName          = errors.New("name is already in use")
	ErrCannotDeleteSystemRole = errors.New("system roles cannot be deleted")
	ErrNotFound               = errors.New("not found")
	ErrPasswordMismatch       = errors.New("new password and confirmation do not match")
	ErrValidationFailed       = errors.New("validation failed")
	ErrUnauthenticated        = errors.New("authentication required")
	ErrForbidden              = errors.New("access forbidden")
)

// ErrWrongTokenType is returned when a refresh token is presented where an
// access token is required or vice versa. It also matches ErrTokenInvalid.
var ErrWrongTokenType = fmt.Errorf("%w: wrong token type", ErrTokenInvalid)

var (
	ErrIdentityNotFound   = fmt.Errorf("identity %w", ErrNotFound)
	ErrRoleNotFound       = fmt.Errorf("role %w", ErrNotFound)
	ErrPermissionNotFound = fmt.Errorf("permission %w", ErrNotFound)
)

// ValidationError names the first constraint a request violated.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

// Invalid returns a ValidationError with a formatted message.
func Invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
