// Package common defines the error taxonomy and small helpers shared by the
// repositories, services and the HTTP layer. Callers match errors with
// errors.Is against the kind sentinels below; specific errors wrap a kind.
package common

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error kinds. The HTTP layer maps each kind to one status code.
var (
	ErrorValidation   = errors.New("validation error")
	ErrorConflict     = errors.New("conflict")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrorNotFound     = errors.New("not found")
	ErrorInternal     = errors.New("internal error")
)

// Credential and account errors.
var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", ErrorUnauthorized)
	ErrAccountInactive    = fmt.Errorf("%w: account is inactive", ErrorUnauthorized)
	ErrUsernameTaken      = fmt.Errorf("%w: username already registered", ErrorConflict)
	ErrEmailTaken         = fmt.Errorf("%w: email already registered", ErrorConflict)
	ErrWeakPassword       = fmt.Errorf("%w: password does not meet policy", ErrorValidation)
	ErrUserNotFound       = fmt.Errorf("%w: user", ErrorNotFound)

	// ErrIncorrectPassword rejects a password change. It is a validation
	// failure for the caller that also matches ErrInvalidCredentials.
	ErrIncorrectPassword error = &multiKindError{
		msg:   "current password is incorrect",
		kinds: []error{ErrorValidation, ErrInvalidCredentials},
	}
)

type multiKindError struct {
	msg   string
	kinds []error
}

func (e *multiKindError) Error() string   { return e.msg }
func (e *multiKindError) Unwrap() []error { return e.kinds }

// Token lifecycle errors.
var (
	ErrInvalidToken         = fmt.Errorf("%w: invalid token", ErrorUnauthorized)
	ErrTokenExpired         = fmt.Errorf("%w: token expired", ErrorUnauthorized)
	ErrRefreshTokenExpired  = fmt.Errorf("%w: refresh token expired", ErrorUnauthorized)
	ErrRefreshTokenRevoked  = fmt.Errorf("%w: refresh token revoked", ErrorUnauthorized)
	ErrRefreshTokenNotFound = fmt.Errorf("%w: refresh token", ErrorNotFound)
)

// Data record errors.
var (
	ErrNameTaken      = fmt.Errorf("%w: record name already exists", ErrorConflict)
	ErrRecordNotFound = fmt.Errorf("%w: record", ErrorNotFound)
)

// ValidationError carries per-field reasons. It matches ErrorValidation.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

// Add records a reason for field and returns the receiver.
func (e *ValidationError) Add(field, reason string) *ValidationError {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = reason
	return e
}

// Empty reports whether no field failed.
func (e *ValidationError) Empty() bool { return e == nil || len(e.Fields) == 0 }

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrorValidation }
