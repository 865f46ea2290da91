package remote

import (
	"errors"
	"fmt"
)

// AuthError means the Azure session is missing, expired or not permitted.
// It is shown to the user verbatim and never retried.
type AuthError struct {
	Backend string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: not authenticated: %s", e.Backend, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NotFoundError means the vault or secret does not exist remotely.
type NotFoundError struct {
	Backend string
	Vault   string
	Secret  string
	Err     error
}

func (e *NotFoundError) Error() string {
	if e.Secret != "" {
		return fmt.Sprintf("%s: secret %q not found in vault %q", e.Backend, e.Secret, e.Vault)
	}
	return fmt.Sprintf("%s: vault %q not found", e.Backend, e.Vault)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// TransientError covers timeouts, throttling and network failures. The
// retry decorator retries these and nothing else.
type TransientError struct {
	Backend string
	Op      string
	Err     error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient failure during %s: %v", e.Backend, e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsAuth reports whether err is or wraps an *AuthError.
func IsAuth(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is or wraps a *NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsTransient reports whether err is or wraps a *TransientError.
func IsTransient(err error) bool {
	var target *TransientError
	return errors.As(err, &target)
}
