// Package errors defines the error taxonomy shared by the bot's components.
// Every error carries a code so callers can decide whether to surface it to
// the invoking user, end a session silently, or abort startup.
package errors

import (
	"errors"
	"fmt"
)

// Standard error codes for the application.
const (
	CodeUnknown       = "UNKNOWN"
	CodeConfigMissing = "CONFIG_MISSING"
	CodeMissingField  = "MISSING_FIELD"
	CodeNoInteraction = "NO_INTERACTION"
	CodePersistence   = "PERSISTENCE"
	CodePlatform      = "PLATFORM"
	CodeValidation    = "VALIDATION"
	CodeUnauthorized  = "UNAUTHORIZED"
)

// ApplicationError is the interface that all our custom errors implement.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// Error represents a basic application error.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the code of the first ApplicationError in err's chain,
// or CodeUnknown if it doesn't contain one.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}

	return CodeUnknown
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return Code(err) == code
}

// ConfigMissingError reports a configuration field (ping channel, role, log
// channel) that must be set before an operation can run.
type ConfigMissingError struct {
	base  Error
	Field string
}

func (e *ConfigMissingError) Error() string { return e.base.Error() }
func (e *ConfigMissingError) Code() string  { return e.base.Code() }
func (e *ConfigMissingError) Unwrap() error { return e.base.Unwrap() }

func NewConfigMissingError(field string) error {
	return &ConfigMissingError{
		base: Error{
			code:    CodeConfigMissing,
			message: field + " not set",
		},
		Field: field,
	}
}

// MissingFieldError reports an incomplete partial task.
type MissingFieldError struct {
	base  Error
	Field string
}

func (e *MissingFieldError) Error() string { return e.base.Error() }
func (e *MissingFieldError) Code() string  { return e.base.Code() }
func (e *MissingFieldError) Unwrap() error { return e.base.Unwrap() }

func NewMissingFieldError(field string) error {
	return &MissingFieldError{
		base: Error{
			code:    CodeMissingField,
			message: field + " not selected",
		},
		Field: field,
	}
}

type NoInteractionError struct {
	base Error
}

func (e *NoInteractionError) Error() string { return e.base.Error() }
func (e *NoInteractionError) Code() string  { return e.base.Code() }
func (e *NoInteractionError) Unwrap() error { return e.base.Unwrap() }

func NewNoInteractionError(message string, cause error) error {
	return &NoInteractionError{
		base: Error{
			code:    CodeNoInteraction,
			message: message,
			err:     cause,
		},
	}
}

type PersistenceError struct {
	base Error
}

func (e *PersistenceError) Error() string { return e.base.Error() }
func (e *PersistenceError) Code() string  { return e.base.Code() }
func (e *PersistenceError) Unwrap() error { return e.base.Unwrap() }

func NewPersistenceError(message string, cause error) error {
	return &PersistenceError{
		base: Error{
			code:    CodePersistence,
			message: message,
			err:     cause,
		},
	}
}

type PlatformError struct {
	base Error
}

func (e *PlatformError) Error() string { return e.base.Error() }
func (e *PlatformError) Code() string  { return e.base.Code() }
func (e *PlatformError) Unwrap() error { return e.base.Unwrap() }

func NewPlatformError(message string, cause error) error {
	return &PlatformError{
		base: Error{
			code:    CodePlatform,
			message: message,
			err:     cause,
		},
	}
}

type ValidationError struct {
	base Error
}

func (e *ValidationError) Error() string { return e.base.Error() }
func (e *ValidationError) Code() string  { return e.base.Code() }
func (e *ValidationError) Unwrap() error { return e.base.Unwrap() }

func NewValidationError(message string, cause error) error {
	return &ValidationError{
		base: Error{
			code:    CodeValidation,
			message: message,
			err:     cause,
		},
	}
}

type UnauthorizedError struct {
	base Error
}

func (e *UnauthorizedError) Error() string { return e.base.Error() }
func (e *UnauthorizedError) Code() string  { return e.base.Code() }
func (e *UnauthorizedError) Unwrap() error { return e.base.Unwrap() }

func NewUnauthorizedError(message string) error {
	return &UnauthorizedError{
		base: Error{
			code:    CodeUnauthorized,
			message: message,
		},
	}
}
