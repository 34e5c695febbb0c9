// Package errors defines the error taxonomy rendered by the HTTP layer.
// Services return *AppError values (or wrap them); pkg/response turns them
// into the {success:false, error, code} envelope.
package errors

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
)

// AppError is an error with a stable client-facing code.
//
// Fields are merged into the response envelope (requiresVerification, for
// example). Details is a diagnostic only shown in development.
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	StatusCode int            `json:"-"`
	Details    string         `json:"-"`
	Fields     map[string]any `json:"-"`
	Internal   error          `json:"-"`
}

func (e *AppError) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Internal != nil:
		return e.Message + ": " + e.Internal.Error()
	default:
		return e.Message
	}
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is compares by Code, so derived copies still match their sentinel.
func (e *AppError) Is(target error) bool {
	var other *AppError
	return e != nil && errors.As(target, &other) && other != nil && e.Code == other.Code
}

// WithInternal returns a copy carrying the underlying cause.
func (e *AppError) WithInternal(err error) *AppError {
	return e.derive(func(cpy *AppError) { cpy.Internal = err })
}

// WithField returns a copy with an extra envelope key.
func (e *AppError) WithField(key string, value any) *AppError {
	return e.derive(func(cpy *AppError) { cpy.Fields[key] = value })
}

// WithDetails returns a copy with a development-only diagnostic.
func (e *AppError) WithDetails(details string) *AppError {
	return e.derive(func(cpy *AppError) { cpy.Details = details })
}

// derive never mutates the receiver; sentinels are shared package state.
func (e *AppError) derive(edit func(*AppError)) *AppError {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Fields = maps.Clone(e.Fields)
	if cpy.Fields == nil {
		cpy.Fields = make(map[string]any, 1)
	}
	edit(&cpy)
	return &cpy
}

// New builds an AppError.
func New(code, message string, statusCode int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode}
}

var (
	ErrBadRequest       = New("BAD_REQUEST", "Invalid request", http.StatusBadRequest)
	ErrSelfModification = New("SELF_MODIFICATION", "You cannot perform this action on your own account", http.StatusBadRequest)

	ErrUnauthorized       = New("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", "Invalid email or password", http.StatusUnauthorized)
	ErrInvalidToken       = New("INVALID_TOKEN", "Invalid or expired token", http.StatusUnauthorized)
	ErrEmailNotVerified   = New("EMAIL_NOT_VERIFIED", "Please verify your email address before signing in", http.StatusUnauthorized).
				WithField("requiresVerification", true)

	ErrForbidden   = New("FORBIDDEN", "Permission denied", http.StatusForbidden)
	ErrCSRFInvalid = New("CSRF_INVALID", "Missing or invalid CSRF token", http.StatusForbidden)

	ErrNotFound = New("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrConflict = New("CONFLICT", "Resource already exists", http.StatusConflict)

	ErrRateLimit      = New("RATE_LIMIT_EXCEEDED", "Too many requests, please slow down", http.StatusTooManyRequests)
	ErrInternalServer = New("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
	ErrRequestTimeout = New("REQUEST_TIMEOUT", "Request timed out", http.StatusServiceUnavailable)
)

// Wrap turns err into a 500 with a client-safe message.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

// FromError finds the AppError in err's chain or reports an internal error.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer.WithInternal(err)
}

func NewBadRequest(message string) *AppError {
	return New(ErrBadRequest.Code, message, ErrBadRequest.StatusCode)
}

// NewValidation reports malformed or missing input.
func NewValidation(message string) *AppError {
	return New("VALIDATION_ERROR", message, http.StatusBadRequest)
}

func NewNotFound(resource string) *AppError {
	return New(ErrNotFound.Code, resource+" not found", ErrNotFound.StatusCode)
}

func NewConflict(message string) *AppError {
	return New(ErrConflict.Code, message, ErrConflict.StatusCode)
}

// NewDependency reports a failed collaborator (database, storage, mail).
// Clients only ever see the generic internal error message.
func NewDependency(dependency string, err error) *AppError {
	return &AppError{
		Code:       "DEPENDENCY_ERROR",
		Message:    ErrInternalServer.Message,
		StatusCode: http.StatusInternalServerError,
		Details:    fmt.Sprintf("%s: %v", dependency, err),
		Internal:   err,
	}
}
