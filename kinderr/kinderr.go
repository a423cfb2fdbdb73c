// Package kinderr defines the closed error-kind taxonomy shared by every
// adapter and component, and the four-digit error-code surface exposed to
// external callers.
package kinderr

import (
	"errors"
	"fmt"
)

// Kind is a closed enumeration of error categories. Callers branch on Kind,
// never on a concrete error type.
type Kind string

const (
	TransientIO       Kind = "TransientIO"
	RateLimited       Kind = "RateLimited"
	Timeout           Kind = "Timeout"
	ValidationError   Kind = "ValidationError"
	NotFound          Kind = "NotFound"
	PermissionDenied  Kind = "PermissionDenied"
	InjectionDetected Kind = "InjectionDetected"
	ConflictingState  Kind = "ConflictingState"
	Fatal             Kind = "Fatal"
)

// IsValid reports whether k is one of the declared kinds.
func (k Kind) IsValid() bool {
	switch k {
	case TransientIO, RateLimited, Timeout, ValidationError, NotFound,
		PermissionDenied, InjectionDetected, ConflictingState, Fatal:
		return true
	}
	return false
}

// Retryable reports the default retry posture for a kind, per spec §7.
func (k Kind) Retryable() bool {
	switch k {
	case TransientIO, RateLimited, Timeout:
		return true
	}
	return false
}

// codeClass maps a Kind to its four-digit code class, per spec §7:
// 1xxx validation, 2xxx connectivity, 3xxx authz, 4xxx quota, 5xxx internal.
var codeClass = map[Kind]int{
	ValidationError:   1000,
	InjectionDetected: 1900,
	TransientIO:       2000,
	Timeout:           2500,
	PermissionDenied:  3000,
	RateLimited:       4000,
	NotFound:          2900,
	ConflictingState:  5500,
	Fatal:             5000,
}

// Error is the concrete error type carrying a Kind, a four-digit Code, an
// optional RetryAfterSeconds hint, and the offending Field for validation
// errors.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Field   string

	RetryAfterSeconds int
	wrapped           error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s[%d]: %s (field=%s)", e.Kind, e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s[%d]: %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// Retryable reports whether the error's kind is retryable.
func (e *Error) Retryable() bool { return e.Kind.Retryable() }

// New constructs an Error of the given kind with the class-default code.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: codeClass[kind], Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind wrapping a lower-level cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	e := New(kind, format, args...)
	e.wrapped = cause
	return e
}

// WithField attaches the offending field name, for ValidationError.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithRetryAfter attaches a server-indicated retry delay, for RateLimited.
func (e *Error) WithRetryAfter(seconds int) *Error {
	e.RetryAfterSeconds = seconds
	return e
}

// WithCode overrides the class-default numeric code.
func (e *Error) WithCode(code int) *Error {
	e.Code = code
	return e
}

// Is reports whether err carries the given Kind, unwrapping as needed.
func Is(err error, kind Kind) bool {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, or "" if err is not a *Error.
func KindOf(err error) Kind {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return ""
}
