package clierr

import "errors"

// Type categorizes a CLI-facing error for consistent messaging & exit codes.
type Type string

const (
	Validation  Type = "validation"
	NotFound    Type = "not_found"
	Conflict    Type = "conflict"
	Auth        Type = "auth"
	Unreachable Type = "unreachable"
	Internal    Type = "internal"
)

// Error is a structured user-facing error.
type Error struct {
	Type    Type
	Message string
	Err     error // optional underlying error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

// New constructs a new CLI Error.
func New(t Type, msg string, err error) *Error { return &Error{Type: t, Message: msg, Err: err} }

// ExitCode maps an error to the process exit status. Nil is 0 and errors
// without a CLI type are 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if !errors.As(err, &e) {
		return 1
	}
	switch e.Type {
	case Validation:
		return 2
	case NotFound:
		return 3
	case Conflict:
		return 4
	case Auth:
		return 5
	case Unreachable:
		return 6
	default:
		return 1
	}
}
