package auth

import "fmt"

// Kind classifies a failure produced by the auth subsystem. The HTTP layer
// maps kinds to status codes; the core never constructs transport concepts.
type Kind int

const (
	KindAuthentication Kind = iota + 1
	KindAuthorization
	KindValidation
	KindConflict
	KindNotFound
)

// Error is the closed failure type used across the auth subsystem.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches any error of the same kind, so errors.Is(err, ErrConflict)
// works regardless of the message attached.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Kind sentinels for errors.Is comparisons.
var (
	ErrAuthentication = &Error{Kind: KindAuthentication, Message: "could not validate credentials"}
	ErrAuthorization  = &Error{Kind: KindAuthorization, Message: "not authorized to perform this action"}
	ErrValidation     = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrConflict       = &Error{Kind: KindConflict, Message: "resource conflict"}
	ErrNotFound       = &Error{Kind: KindNotFound, Message: "not found"}
)

// ErrInvalidToken indicates a token failed validation.
var ErrInvalidToken = &Error{Kind: KindAuthentication, Message: "invalid token"}

func authenticationf(format string, args ...any) *Error {
	return &Error{Kind: KindAuthentication, Message: fmt.Sprintf(format, args...)}
}

func authorizationf(format string, args ...any) *Error {
	return &Error{Kind: KindAuthorization, Message: fmt.Sprintf(format, args...)}
}

func validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflictf builds a conflict error; exported for store implementations.
func Conflictf(format string, args ...any) *Error { return conflictf(format, args...) }

// NotFoundf builds a not-found error; exported for store implementations.
func NotFoundf(format string, args ...any) *Error { return notFoundf(format, args...) }
