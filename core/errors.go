package core

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindNotFound         ErrorKind = "not_found"
	KindConflict         ErrorKind = "conflict"
	KindStoreUnavailable ErrorKind = "store_unavailable"
	KindInternal         ErrorKind = "internal"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldError is a shortcut for a ValidationError on a single field, using err as the message.
func NewFieldError(field string, err error) error {
	return &ValidationError{Err: err, Fields: []FieldError{{Field: field, Error: err.Error()}}}
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

func (err ValidationError) Unwrap() error { return err.Err }

// kindError carries one of the non-validation error kinds.
type kindError struct {
	kind    ErrorKind
	message string
	cause   error
}

func (e *kindError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *kindError) Unwrap() error { return e.cause }

// Message returns the human readable part, without the underlying cause.
func (e *kindError) Message() string { return e.message }

func NewNotFoundError(msg string) error {
	return &kindError{kind: KindNotFound, message: msg}
}

func NewConflictError(msg string) error {
	return &kindError{kind: KindConflict, message: msg}
}

// NewStoreUnavailableError marks a failed read/write/commit against the durable store.
// Callers may retry the whole operation.
func NewStoreUnavailableError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: KindStoreUnavailable, message: msg, cause: err}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch t := e.(type) {
		case *ValidationError, validator.ValidationErrors:
			return KindValidation
		case *kindError:
			return t.kind
		}
	}
	return KindInternal
}

// KindMessage returns the message of a kinded error, or err.Error() otherwise.
func KindMessage(err error) string {
	var kErr *kindError
	if errors.As(err, &kErr) {
		return kErr.Message()
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Error()
	}
	return err.Error()
}

func IsNotFound(err error) bool         { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool         { return KindOf(err) == KindConflict }
func IsStoreUnavailable(err error) bool { return KindOf(err) == KindStoreUnavailable }

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
