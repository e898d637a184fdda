package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError reports missing or malformed input.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// AuthorizationError reports a caller lacking a role or the ownership of an object.
// Unauthenticated is true when no (valid) identity was provided at all.
type AuthorizationError struct {
	Message         string
	Unauthenticated bool
}

func NewAuthorizationError(msg string) error {
	return &AuthorizationError{Message: msg}
}

func NewAuthenticationError(msg string) error {
	return &AuthorizationError{Message: msg, Unauthenticated: true}
}

func (err AuthorizationError) Error() string {
	return err.Message
}

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity string
}

func NewNotFoundError(entity string) error {
	return &NotFoundError{Entity: entity}
}

func (err NotFoundError) Error() string {
	return err.Entity + " not found"
}

// InvalidStateError reports an operation not allowed in the current state of an object.
type InvalidStateError struct {
	Message string
}

func NewInvalidStateError(msg string) error {
	return &InvalidStateError{Message: msg}
}

func (err InvalidStateError) Error() string {
	return err.Message
}

// PersistenceError wraps a failure of the underlying store.
type PersistenceError struct {
	Op  string
	Err error
}

func NewPersistenceError(err error, op string) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

func (err PersistenceError) Error() string {
	return err.Op + ": " + err.Err.Error()
}

func (err PersistenceError) Unwrap() error { return err.Err }

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
