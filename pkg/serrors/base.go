package serrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable error codes shared across modules. Public callers branch on these,
// so they are part of the wire contract and must never be renamed.
const (
	CodeValidation                   = "VALIDATION_ERROR"
	CodeInvalidStateTransition       = "INVALID_STATE_TRANSITION"
	CodeNotFound                     = "NOT_FOUND"
	CodeTokenExpired                 = "TOKEN_EXPIRED"
	CodeTokenInvalid                 = "TOKEN_INVALID"
	CodeTokenVersionMismatch         = "TOKEN_VERSION_MISMATCH"
	CodeChangeRequestAlreadyResolved = "CHANGE_REQUEST_ALREADY_RESOLVED"
	CodeConcurrentModification       = "CONCURRENT_MODIFICATION"
	CodeInternal                     = "INTERNAL_ERROR"
)

type BaseError struct {
	Code         string
	Message      string
	LocaleKey    string
	TemplateData map[string]string
	Cause        error
}

func NewError(code, message, localeKey string) *BaseError {
	return &BaseError{Code: code, Message: message, LocaleKey: localeKey}
}

func NewFieldRequiredError(field, localeKey string) *BaseError {
	return NewError(CodeValidation, fmt.Sprintf("%s is required", field), localeKey).
		WithTemplateData(map[string]string{"field": field})
}

func (e *BaseError) WithTemplateData(data map[string]string) *BaseError {
	e.TemplateData = data
	return e
}

// Wrap returns a copy of e carrying cause, leaving e itself untouched.
// Always use this on shared sentinels.
func (e *BaseError) Wrap(cause error) *BaseError {
	clone := *e
	clone.Cause = cause
	return &clone
}

func (e *BaseError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *BaseError) Unwrap() error { return e.Cause }

// Is matches two BaseErrors by code, so sentinel comparisons with errors.Is
// work without sharing pointer identity.
func (e *BaseError) Is(target error) bool {
	var other *BaseError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// Code extracts the stable code from any error in the chain, or CodeInternal
// when no BaseError is present.
func Code(err error) string {
	var base *BaseError
	if errors.As(err, &base) {
		return base.Code
	}
	return CodeInternal
}

// HTTPStatus maps a stable code to the status the boundary responds with.
func HTTPStatus(code string) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidStateTransition, CodeChangeRequestAlreadyResolved, CodeConcurrentModification:
		return http.StatusConflict
	case CodeTokenExpired, CodeTokenInvalid, CodeTokenVersionMismatch:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
