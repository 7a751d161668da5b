// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package errs defines errors that carry HTTP status semantics.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an error with an associated HTTP status code.
type Error struct {
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same status, so errors.Is(err, errs.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Status == e.Status && t.Detail == "" && t.Err == nil
	}
	return false
}

// Sentinels for errors.Is comparisons.
var (
	ErrBadRequest       = &Error{Status: http.StatusBadRequest}
	ErrUnauthorized     = &Error{Status: http.StatusUnauthorized}
	ErrForbidden        = &Error{Status: http.StatusForbidden}
	ErrNotFound         = &Error{Status: http.StatusNotFound}
	ErrMethodNotAllowed = &Error{Status: http.StatusMethodNotAllowed}
	ErrConflict         = &Error{Status: http.StatusConflict}
	ErrInternal         = &Error{Status: http.StatusInternalServerError}
)

// New returns an error with the given status and formatted detail.
func New(status int, format string, args ...any) *Error {
	return &Error{Status: status, Detail: fmt.Sprintf(format, args...)}
}

func BadRequest(format string, args ...any) *Error {
	return New(http.StatusBadRequest, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return New(http.StatusUnauthorized, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return New(http.StatusForbidden, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(http.StatusNotFound, format, args...)
}

func MethodNotAllowed(format string, args ...any) *Error {
	return New(http.StatusMethodNotAllowed, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return New(http.StatusConflict, format, args...)
}

// InternalServerError wraps cause; the cause is logged, never sent to clients.
func InternalServerError(cause error) *Error {
	return &Error{Status: http.StatusInternalServerError, Err: cause}
}

// Status reports the HTTP status carried by err, if any.
func Status(err error) (int, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Status, true
	}
	return 0, false
}

// Detail returns the client-facing text for err: its detail, or the status text.
func Detail(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusText(http.StatusInternalServerError)
	}
	if e.Detail != "" {
		return e.Detail
	}
	return http.StatusText(e.Status)
}

// IsUnauthorized reports whether err carries a 401 status.
func IsUnauthorized(err error) bool {
	s, ok := Status(err)
	return ok && s == http.StatusUnauthorized
}

// IsForbidden reports whether err carries a 403 status.
func IsForbidden(err error) bool {
	s, ok := Status(err)
	return ok && s == http.StatusForbidden
}
