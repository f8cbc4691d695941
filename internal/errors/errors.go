package errors

import (
	"errors"
	"fmt"
)

// Error is an instance of a Kind carrying a code, a message, metadata, the
// stack at which it was created, and a reportable flag.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"-"`
	Meta    map[string]any `json:"meta,omitempty"`

	kind       *Kind
	stack      Stack
	reportable bool

	// original is the error this one replaced during classification. It is
	// not part of the Unwrap chain.
	original error
}

// Error implements the error interface
func (e *Error) Error() string {
	name := e.Kind().Reported().Name()
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", name, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", name, e.Message)
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches kinds by ancestry and errors by kind and code
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case *Kind:
		return e.Kind().IsA(t)
	case *Error:
		return e.Kind() == t.Kind() && e.Code == t.Code
	}
	return false
}

// Kind returns the kind the error is an instance of
func (e *Error) Kind() *Kind {
	if e.kind == nil {
		return Standard
	}
	return e.kind
}

// Stack returns the stack captured when the error was created
func (e *Error) Stack() Stack {
	return e.stack
}

// WithStack replaces the captured stack
func (e *Error) WithStack(stack Stack) *Error {
	e.stack = stack
	return e
}

// WithOriginal records the error that e replaces
func (e *Error) WithOriginal(err error) *Error {
	e.original = err
	return e
}

// Original returns the error that e replaced, if any
func (e *Error) Original() error {
	return e.original
}

// Reportable reports whether the error should be forwarded to a reporter
func (e *Error) Reportable() bool {
	return e.reportable
}

// MarkReportable flags the error for reporting
func (e *Error) MarkReportable() {
	e.reportable = true
}

// WithMeta adds metadata to the error
func (e *Error) WithMeta(key string, value any) *Error {
	if e.Meta == nil {
		e.Meta = make(map[string]any)
	}
	e.Meta[key] = value
	return e
}

// New creates a new error with the given code and message
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		stack:   callers(3),
	}
}

// Newf creates a new error with a formatted message
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error, preserving its code and kind if it's an Error
func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}

	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Code:    existingErr.Code,
			Message: message,
			Cause:   err,
			Meta:    existingErr.Meta,
			kind:    existingErr.kind,
			stack:   existingErr.stack,

			reportable: existingErr.reportable,
		}
	}

	return &Error{
		Code:    CodeInternal,
		Message: message,
		Cause:   err,
		stack:   callers(3),
	}
}

// Wrapf wraps an error with a formatted message
func Wrapf(err error, format string, args ...any) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// NotFound creates a not found error
func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

// NotFoundf creates a not found error with formatted message
func NotFoundf(format string, args ...any) *Error {
	return Newf(CodeNotFound, format, args...)
}

// InvalidArgument creates an invalid argument error
func InvalidArgument(message string) *Error {
	return New(CodeInvalidArgument, message)
}

// InvalidArgumentf creates an invalid argument error with formatted message
func InvalidArgumentf(format string, args ...any) *Error {
	return Newf(CodeInvalidArgument, format, args...)
}

// AlreadyExistsf creates an already exists error with formatted message
func AlreadyExistsf(format string, args ...any) *Error {
	return Newf(CodeAlreadyExists, format, args...)
}

// Internal creates an internal error
func Internal(message string) *Error {
	return New(CodeInternal, message)
}
