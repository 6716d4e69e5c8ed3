package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for each failure kind. Every *Error unwraps to one of them,
// so callers test with errors.Is(err, domain.ErrNotFound).
var (
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Authentication outcomes surfaced to callers verbatim.
var (
	ErrInvalidCredentials  = &Error{Kind: ErrUnauthorized, Message: "invalid credentials"}
	ErrAccountDeactivated  = &Error{Kind: ErrUnauthorized, Message: "account deactivated"}
	ErrInvalidOrInactive   = &Error{Kind: ErrUnauthorized, Message: "invalid or inactive user"}
	ErrAdminRoleRequired   = &Error{Kind: ErrForbidden, Message: "admin role required"}
	ErrNotResourceOwner    = &Error{Kind: ErrForbidden, Message: "access denied"}
	ErrMissingCredential   = &Error{Kind: ErrUnauthorized, Message: "missing or invalid token"}
	ErrRoleChangeForbidden = &Error{Kind: ErrForbidden, Message: "only admins can change roles"}
)

// Error carries a failure kind, a caller-facing message and optional
// per-field details for validation failures.
type Error struct {
	Kind    error
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Validation builds a validation error with field details.
func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: ErrValidation, Message: message, Fields: fields}
}

// Conflict builds a uniqueness violation error.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a missing entity error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

// FieldsOf returns the field details of a validation error, if any.
func FieldsOf(err error) map[string]string {
	var de *Error
	if errors.As(err, &de) {
		return de.Fields
	}
	return nil
}
