// Package apperr defines the error taxonomy shared by the stores, the identity
// gate and the HTTP layer. Every error crossing a package boundary is either an
// *Error or gets wrapped into an Internal one before it reaches a client.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for status mapping.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindConflict
	KindAuth
	KindNotFound
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a client-safe error. Message is what the caller sees; the cause is
// only kept for logging.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	status  int
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches sentinel errors by kind and code so wrapped copies still compare equal.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// Status returns the HTTP status for the error.
func (e *Error) Status() int {
	if e.status != 0 {
		return e.status
	}
	switch e.Kind {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WithStatus returns a copy that reports a different HTTP status.
func (e *Error) WithStatus(status int) *Error {
	cp := *e
	cp.status = status
	return &cp
}

// WithCause returns a copy carrying cause for logs.
func (e *Error) WithCause(cause error) *Error {
	cp := *e
	cp.cause = cause
	return &cp
}

func Validation(code int, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func Conflict(code int, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func NotFound(code int, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Auth(code int, message string) *Error {
	return &Error{Kind: KindAuth, Code: code, Message: message}
}

// Internal hides cause behind a generic message.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: "internal error", cause: cause}
}

const (
	CodeInvalidPayload    = 40001
	CodeInvalidField      = 40002
	CodeWrongPassword     = 40003
	CodeInvalidAmount     = 40010
	CodeInvalidYear       = 40011
	CodeInvalidID         = 40012
	CodeMissingCredential = 40101
	CodeBadAuthHeader     = 40102
	CodeInvalidCredential = 40105
	CodeRecordNotFound    = 40401
	CodeUserNotFound      = 40410
	CodeUsernameTaken     = 40901
	CodeEmailTaken        = 40902
	CodeRateLimited       = 42901
	CodeInternal          = 50000
)

var (
	// ErrMissingCredential is returned when no bearer token was supplied.
	ErrMissingCredential = Auth(CodeMissingCredential, "authorization header missing")
	// ErrInvalidCredential covers malformed, expired, revoked or unverifiable tokens.
	ErrInvalidCredential = Auth(CodeInvalidCredential, "invalid or expired token")
	// ErrWrongPassword is an invalid credential on login; reported as 400.
	ErrWrongPassword = Auth(CodeWrongPassword, "invalid email or password").WithStatus(http.StatusBadRequest)
	// ErrRecordNotFound does not distinguish a missing record from a foreign one.
	ErrRecordNotFound = NotFound(CodeRecordNotFound, "record not found or not permitted")
	ErrUserNotFound   = NotFound(CodeUserNotFound, "user not found")
	ErrUsernameTaken  = Conflict(CodeUsernameTaken, "username already exists")
	ErrEmailTaken     = Conflict(CodeEmailTaken, "email already registered")
)

// As extracts an *Error from err, wrapping anything else as Internal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
