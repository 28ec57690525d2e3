package domain

import (
	"errors"
)

var (
	ErrAlreadyRelated = errors.New("users are already related")
	ErrSelfRequest    = errors.New("cannot connect with self")
	ErrNotFound       = errors.New("not found")
	ErrNetwork        = errors.New("network error")
	ErrValidation     = errors.New("validation failed")
	ErrInFlight       = errors.New("operation already in flight")
	ErrUnauthorized   = errors.New("not authenticated")
)

// Recoverable reports whether the caller may simply retry the operation.
// Transient network failures and duplicate triggers are recoverable; the rest need user input.
func Recoverable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrInFlight)
}
