// Package apperr holds the operational errors surfaced to API callers.
// Their messages are safe to show; any other error is an internal fault.
package apperr

import (
	"errors"
	"net/http"
)

const (
	CodeAuthentication   = "AUTHENTICATION_ERROR"
	CodeAuthorization    = "AUTHORIZATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeCapacityExceeded = "CAPACITY_EXCEEDED"
	CodeValidation       = "VALIDATION_ERROR"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"
	CodeInternal         = "INTERNAL_SERVER_ERROR"
)

type Error struct {
	Status  int
	Code    string
	Message string
	Fields  map[string][]string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches on code so callers can compare against the sentinel values below.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

var (
	ErrAuthentication   = &Error{Status: http.StatusUnauthorized, Code: CodeAuthentication}
	ErrAuthorization    = &Error{Status: http.StatusForbidden, Code: CodeAuthorization}
	ErrNotFound         = &Error{Status: http.StatusNotFound, Code: CodeNotFound}
	ErrConflict         = &Error{Status: http.StatusConflict, Code: CodeConflict}
	ErrCapacityExceeded = &Error{Status: http.StatusConflict, Code: CodeCapacityExceeded}
	ErrValidation       = &Error{Status: http.StatusBadRequest, Code: CodeValidation}
	ErrUnavailable      = &Error{Status: http.StatusServiceUnavailable, Code: CodeUnavailable}
)

func Authentication(message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: CodeAuthentication, Message: message}
}

func Authorization(message string) *Error {
	return &Error{Status: http.StatusForbidden, Code: CodeAuthorization, Message: message}
}

// NotFound builds "<resource> not found".
func NotFound(resource string) *Error {
	return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: resource + " not found"}
}

func Conflict(message string) *Error {
	return &Error{Status: http.StatusConflict, Code: CodeConflict, Message: message}
}

func CapacityExceeded(message string) *Error {
	return &Error{Status: http.StatusConflict, Code: CodeCapacityExceeded, Message: message}
}

func Validation(message string, fields map[string][]string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeValidation, Message: message, Fields: fields}
}

func Unavailable(message string) *Error {
	return &Error{Status: http.StatusServiceUnavailable, Code: CodeUnavailable, Message: message}
}

// As returns the operational error wrapped in err, if any.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
