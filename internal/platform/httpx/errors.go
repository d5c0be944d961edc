// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error codes returned in the failure envelope.
const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
	CodeRateLimited  = "RATE_LIMITED"
)

const internalMessage = "An unexpected error occurred"

// ValidationError reports a single invalid field. It wraps ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrValidation.
func (e ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a field-level validation error.
func Invalid(field, message string) error {
	return ValidationError{Field: field, Message: message}
}

// RespondError maps domain errors to the failure envelope. Internal errors never
// leak their message.
func RespondError(w http.ResponseWriter, err error) {
	var vErr ValidationError
	switch {
	case errors.As(err, &vErr):
		Fail(w, http.StatusBadRequest, CodeValidation, vErr.Error())
	case errors.Is(err, ErrValidation):
		Fail(w, http.StatusBadRequest, CodeValidation, err.Error())
	case errors.Is(err, ErrUnauthorized):
		Fail(w, http.StatusUnauthorized, CodeUnauthorized, "Authentication required")
	case errors.Is(err, ErrForbidden):
		Fail(w, http.StatusForbidden, CodeForbidden, "Module access denied")
	case errors.Is(err, ErrNotFound):
		Fail(w, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		Fail(w, http.StatusConflict, CodeConflict, err.Error())
	default:
		Fail(w, http.StatusInternalServerError, CodeInternal, internalMessage)
	}
}
