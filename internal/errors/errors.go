package errors

import (
	"errors"
	"fmt"
)

var (
	ErrServiceNotFound     = errors.New("service not found")
	ErrInvalidCredentials  = errors.New("invalid service credentials")
	ErrProviderHandshake   = errors.New("provider handshake failed")
	ErrUnauthorizedLogout  = errors.New("logout requires an authenticated session")
	ErrSchemeNotRegistered = errors.New("authentication scheme not registered")
	ErrAccessDenied        = errors.New("access denied")
)

// ServiceNotFoundError is returned when a label does not match exactly one
// catalog binding. Matches holds the number of bindings that did match.
type ServiceNotFoundError struct {
	Label   string
	Matches int
}

func (e *ServiceNotFoundError) Error() string {
	if e.Matches == 0 {
		return fmt.Sprintf("no service bound with label %q", e.Label)
	}
	return fmt.Sprintf("%d services bound with label %q, expected exactly one", e.Matches, e.Label)
}

func (e *ServiceNotFoundError) Is(target error) bool {
	return target == ErrServiceNotFound
}

// ProviderHandshakeError wraps a failure reported while completing the OIDC
// callback. Stage names the step that failed (state, exchange, verify, ...).
type ProviderHandshakeError struct {
	Stage string
	Err   error
}

func (e *ProviderHandshakeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider handshake failed at %s", e.Stage)
	}
	return fmt.Sprintf("provider handshake failed at %s: %v", e.Stage, e.Err)
}

func (e *ProviderHandshakeError) Unwrap() error {
	return e.Err
}

func (e *ProviderHandshakeError) Is(target error) bool {
	return target == ErrProviderHandshake
}

// UnauthorizedLogoutError is returned when Logout is called without a local session.
type UnauthorizedLogoutError struct{}

func (e *UnauthorizedLogoutError) Error() string {
	return ErrUnauthorizedLogout.Error()
}

func (e *UnauthorizedLogoutError) Is(target error) bool {
	return target == ErrUnauthorizedLogout
}

// Handshake is a shorthand for constructing a ProviderHandshakeError.
func Handshake(stage string, err error) error {
	return &ProviderHandshakeError{Stage: stage, Err: err}
}
