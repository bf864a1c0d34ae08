package errors

import (
	"errors"
	"fmt"
)

// Is and As are re-exported so callers only need to import this package for
// both construction and inspection of errors.
func Is(err, target error) bool { return errors.Is(err, target) }
func As(err error, target any) bool { return errors.As(err, target) }

// Code identifies a class of application error, stable across releases so
// callers can branch on it instead of the message text.
type Code string

// Common codes shared across the module's adapters.
const (
	CodeInternal        Code = "INTERNAL"
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeAlreadyExists   Code = "ALREADY_EXISTS"
	CodeUnavailable     Code = "UNAVAILABLE"
	CodeTimeout         Code = "TIMEOUT"
	CodePermissionDenied Code = "PERMISSION_DENIED"
)

// AppError is the structured error type used throughout the module: a
// stable Code, a human-readable Message, and an optional underlying cause
// for chaining with errors.Is/errors.As.
type AppError struct {
	Code    Code
	Message string
	Cause   error
}

// New builds an AppError with the given code, message and optional cause.
func New(code Code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// Wrap attaches message context to err, defaulting to CodeInternal unless
// err already carries an AppError code, which is preserved.
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}
	code := CodeInternal
	var existing *AppError
	if errors.As(err, &existing) {
		code = existing.Code
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// CodeOf extracts the Code from err if it (or something it wraps) is an
// AppError, otherwise returns CodeInternal.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}
