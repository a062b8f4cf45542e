// Package errors is the error taxonomy shared by every service. Each kind
// pairs a sentinel for errors.Is with a stable wire code and HTTP status.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyExists  = errors.New("resource already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal error")
	ErrConflict       = errors.New("conflict")
	ErrGone           = errors.New("gone")
	ErrServiceUnavail = errors.New("service unavailable")
	// ErrInvariant marks a state that should be unreachable, e.g. a profile
	// missing for an existing user. It is never retried.
	ErrInvariant = errors.New("invariant violation")
)

type kind struct {
	sentinel error
	code     string
	status   int
	message  string
}

// kinds is ordered: the first sentinel matched by errors.Is wins.
var kinds = []kind{
	{ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest, "invalid input"},
	{ErrUnauthorized, "UNAUTHORIZED", http.StatusUnauthorized, "unauthorized"},
	{ErrForbidden, "FORBIDDEN", http.StatusForbidden, "forbidden"},
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound, "resource not found"},
	{ErrAlreadyExists, "ALREADY_EXISTS", http.StatusConflict, "resource already exists"},
	{ErrConflict, "CONFLICT", http.StatusConflict, "conflict"},
	{ErrGone, "GONE", http.StatusGone, "gone"},
	{ErrServiceUnavail, "UNAVAILABLE", http.StatusServiceUnavailable, "service temporarily unavailable"},
	{ErrInvariant, "INVARIANT_VIOLATION", http.StatusInternalServerError, "an internal error occurred"},
}

// AppError is an error with a client-facing code, message and status. Err
// holds the cause and is never written to clients.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Status  int               `json:"-"`
	Err     error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newError(sentinel error, message string) *AppError {
	for _, k := range kinds {
		if k.sentinel == sentinel {
			return &AppError{Code: k.code, Message: message, Status: k.status, Err: sentinel}
		}
	}
	return &AppError{Code: "INTERNAL_ERROR", Message: message, Status: http.StatusInternalServerError, Err: sentinel}
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return newError(ErrNotFound, fmt.Sprintf("%s with id %s not found", resource, id))
}

// AlreadyExists creates a 409 error for a duplicate unique field.
func AlreadyExists(resource, field, value string) *AppError {
	return newError(ErrAlreadyExists, fmt.Sprintf("%s with %s %q already exists", resource, field, value))
}

// Conflict creates a 409 error for a state conflict that is not a duplicate key.
func Conflict(message string) *AppError {
	return newError(ErrConflict, message)
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return newError(ErrInvalidInput, message)
}

// Validation creates a 400 error listing the rejected fields.
func Validation(fields map[string]string) *AppError {
	e := newError(ErrInvalidInput, "request validation failed")
	e.Code = "VALIDATION_ERROR"
	e.Fields = fields
	return e
}

// Unauthorized creates a 401 error. Callers must keep the message generic:
// the concrete reason belongs in logs only.
func Unauthorized(message string) *AppError {
	return newError(ErrUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return newError(ErrForbidden, message)
}

func Gone(message string) *AppError {
	return newError(ErrGone, message)
}

// Unavailable creates a 503 error for an unreachable backing store or
// upstream service. The operation may be retried by the caller.
func Unavailable(message string, err error) *AppError {
	e := newError(ErrServiceUnavail, message)
	e.Err = errors.Join(ErrServiceUnavail, err)
	return e
}

// Invariant creates a 500 error for a broken data invariant.
func Invariant(message string) *AppError {
	return newError(ErrInvariant, message)
}

// Internal hides err behind a generic 500.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Wrap adds context to err, keeping it matchable with errors.Is.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// From returns the AppError in err's chain. A bare sentinel gets its kind's
// generic message; anything else becomes Internal. From(nil) is nil.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return &AppError{Code: k.code, Message: k.message, Status: k.status, Err: err}
		}
	}
	return Internal(err)
}

// HTTPStatus returns the HTTP status code for err.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return From(err).Status
}
