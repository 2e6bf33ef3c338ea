package fetchq

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
)

// ErrorCode represents high-level error categories.
type ErrorCode string

const (
	ErrCodeInvalidParameters ErrorCode = "invalid parameters"
	ErrCodePoolExhausted     ErrorCode = "request pool exhausted"
	ErrCodeQueueOverflow     ErrorCode = "channel queue overflow"
	ErrCodeOpenFailed        ErrorCode = "open failed"
	ErrCodeNoBuffer          ErrorCode = "no buffer bound"
	ErrCodeShortRead         ErrorCode = "short read"
	ErrCodeTransportError    ErrorCode = "transport error"
	ErrCodeCancelled         ErrorCode = "cancelled"
	ErrCodeNotInCallback     ErrorCode = "not inside a response callback"
	ErrCodeShutdown          ErrorCode = "engine shut down"
)

// Error is a structured fetchq error with operation context and optional
// errno mapping for backend failures.
type Error struct {
	Op      string        // operation that failed (e.g. "SEND", "OPEN")
	Channel int           // channel index (-1 if not applicable)
	Path    string        // request path ("" if not applicable)
	Code    ErrorCode     // high-level error category
	Errno   syscall.Errno // OS errno (0 if not applicable)
	Msg     string        // human-readable message
	Inner   error         // wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Channel >= 0 {
		parts = append(parts, fmt.Sprintf("channel=%d", e.Channel))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", int(e.Errno)))
	}
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if len(parts) > 0 {
		return fmt.Sprintf("fetchq: %s (%s)", msg, strings.Join(parts, " "))
	}
	return fmt.Sprintf("fetchq: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is matches two structured errors by code.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// NewError creates a new structured error.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{
		Op:      op,
		Channel: -1,
		Code:    code,
		Msg:     msg,
	}
}

// NewChannelError creates a new channel-scoped error.
func NewChannelError(op string, channel int, code ErrorCode, msg string) *Error {
	return &Error{
		Op:      op,
		Channel: channel,
		Code:    code,
		Msg:     msg,
	}
}

// NewPathError creates an error for a failed backend operation on a path.
func NewPathError(op, path string, code ErrorCode, inner error) *Error {
	e := &Error{
		Op:      op,
		Channel: -1,
		Path:    path,
		Code:    code,
		Inner:   inner,
	}
	if inner != nil {
		e.Msg = inner.Error()
		var errno syscall.Errno
		if errors.As(inner, &errno) {
			e.Errno = errno
		}
	}
	return e
}

// WrapError wraps an existing error with fetchq context, mapping known OS
// errors to error codes.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if fe, ok := inner.(*Error); ok {
		out := *fe
		out.Op = op
		return &out
	}
	code := ErrCodeTransportError
	var errno syscall.Errno
	if errors.As(inner, &errno) {
		code = mapErrnoToCode(errno)
		return &Error{
			Op:      op,
			Channel: -1,
			Code:    code,
			Errno:   errno,
			Msg:     errno.Error(),
			Inner:   inner,
		}
	}
	return &Error{
		Op:      op,
		Channel: -1,
		Code:    code,
		Msg:     inner.Error(),
		Inner:   inner,
	}
}

// mapErrnoToCode maps OS errnos from backend failures to error codes.
func mapErrnoToCode(errno syscall.Errno) ErrorCode {
	switch errno {
	case syscall.ENOENT, syscall.EACCES, syscall.EISDIR:
		return ErrCodeOpenFailed
	case syscall.EINVAL, syscall.E2BIG:
		return ErrCodeInvalidParameters
	case syscall.ECANCELED:
		return ErrCodeCancelled
	default:
		return ErrCodeTransportError
	}
}

// IsCode checks if an error matches a specific error code.
func IsCode(err error, code ErrorCode) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}

// IsErrno checks if an error carries a specific errno.
func IsErrno(err error, errno syscall.Errno) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Errno == errno
	}
	return false
}
