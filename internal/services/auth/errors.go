package auth

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNoRefreshToken     = errors.New("no refresh token available")
	ErrNotLoggedIn        = errors.New("no user logged in")
	ErrStorageParse       = errors.New("corrupted session state")
)

// BackendError is a rejection reported by the backend for a given operation
type BackendError struct {
	Op      string
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func backendError(op, message string) error {
	return &BackendError{Op: op, Message: message}
}

// IsBackendError reports whether err wraps a BackendError
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}
