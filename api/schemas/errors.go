package schemas

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failure so callers can react to the kind of fault
// without parsing messages.
type ErrorCode string

const (
	// CodeNotFound means an unknown tool, an element index missing from the
	// selector map, or a tab index out of range.
	CodeNotFound ErrorCode = "NotFound"
	// CodeValidation means an input failed a tool's schema.
	CodeValidation ErrorCode = "ValidationError"
	// CodeTypeMismatch means the action input was not a key/value mapping.
	CodeTypeMismatch ErrorCode = "TypeMismatch"
	// CodeEnvironment covers any fault raised by the browser or the host.
	CodeEnvironment ErrorCode = "EnvironmentFault"
	// CodeProtocolDecode means a model reply could not be decoded.
	CodeProtocolDecode ErrorCode = "ProtocolDecodeFault"
	// CodeBudgetExceeded marks a run that hit its iteration cap. It is a
	// routing condition, not a failure reported to the caller.
	CodeBudgetExceeded ErrorCode = "BudgetExceeded"
)

// Error is a classified error carrying an ErrorCode.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// NewError builds a classified error with a formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies err under code. The message defaults to err's text.
func WrapError(code ErrorCode, err error, format string, args ...any) *Error {
	e := &Error{Code: code, Err: err}
	if format != "" {
		e.Message = fmt.Sprintf(format, args...)
	}
	return e
}

func (e *Error) Error() string {
	msg := e.Message
	switch {
	case msg == "" && e.Err != nil:
		msg = e.Err.Error()
	case e.Err != nil:
		msg = msg + ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so errors.Is(err, ErrNotFound) works
// regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound       = &Error{Code: CodeNotFound}
	ErrValidation     = &Error{Code: CodeValidation}
	ErrTypeMismatch   = &Error{Code: CodeTypeMismatch}
	ErrEnvironment    = &Error{Code: CodeEnvironment}
	ErrProtocolDecode = &Error{Code: CodeProtocolDecode}
	ErrBudgetExceeded = &Error{Code: CodeBudgetExceeded}
)

// CodeOf returns the code of the first classified error in err's chain.
// Unclassified errors are treated as environment faults.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeEnvironment
}
