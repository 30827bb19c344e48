package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameExists     = errors.New("username exists")
	ErrRequestFailed      = errors.New("request failed")
)

// ValidationError reports malformed input caught before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// AuthError is returned by login and signup. Reason is one of
// ErrInvalidCredentials, ErrUsernameExists or ErrRequestFailed.
type AuthError struct {
	Reason error
	Cause  error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("auth: %v: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("auth: %v", e.Reason)
}

func (e *AuthError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Reason, e.Cause}
	}
	return []error{e.Reason}
}

// FetchError reports an unreachable gateway or a non-success status.
type FetchError struct {
	Op    string
	Cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Op, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }
