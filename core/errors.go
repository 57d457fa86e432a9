package core

import (
	"strings"

	"github.com/pkg/errors"
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

// NewIDsValidationError rejects a request naming every offending id.
func NewIDsValidationError(field, msg string, ids []string) error {
	text := msg + ": " + strings.Join(ids, ", ")
	return NewValidationError(errors.New(text), FieldError{Field: field, Error: text})
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

// IsValidationError reports whether the cause of err is a *ValidationError.
func IsValidationError(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

// NotFoundError names the ids Err was raised for.
type NotFoundError struct {
	Err error
	IDs []string
}

func NewNotFoundError(err error, ids []string) error {
	return &NotFoundError{Err: err, IDs: ids}
}

func (err NotFoundError) Error() string {
	return err.Err.Error() + ": " + strings.Join(err.IDs, ", ")
}

func (err NotFoundError) Cause() error  { return err.Err }
func (err NotFoundError) Unwrap() error { return err.Err }

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
