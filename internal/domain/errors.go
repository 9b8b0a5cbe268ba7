package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the API layer can pick a status code
// without inspecting messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindBackend
	KindForbidden
	KindUnsupportedFormat
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindBackend:
		return "backend"
	case KindForbidden:
		return "forbidden"
	case KindUnsupportedFormat:
		return "unsupported_format"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is the error type returned by every domain operation.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message()
	}
	return e.Op + ": " + e.Message()
}

// Message is the user-facing text without the operation prefix. Backend
// errors carry the backend's message verbatim.
func (e *Error) Message() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

func Validation(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Unsupported(op, format string, args ...any) error {
	return &Error{Kind: KindUnsupportedFormat, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Forbidden(op, msg string) error {
	return &Error{Kind: KindForbidden, Op: op, Msg: msg}
}

func NotFound(op, what string, id string) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf("%s %q not found", what, id)}
}

// Backend wraps a persistence or remote failure. Already classified errors
// pass through unchanged.
func Backend(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: KindBackend, Op: op, Err: err}
}
