package pcm

import (
	"errors"
	"fmt"
)

// ErrorCode classifies pipeline and archive failures.
type ErrorCode string

// Error codes
const (
	ErrCodeDecode            ErrorCode = "DECODE_FAILED"
	ErrCodeEncode            ErrorCode = "ENCODE_FAILED"
	ErrCodeEmptyInput        ErrorCode = "EMPTY_INPUT"
	ErrCodeEmptyBuffer       ErrorCode = "EMPTY_BUFFER"
	ErrCodeInvalidParameter  ErrorCode = "INVALID_PARAMETER"
	ErrCodeInvalidFilterSpec ErrorCode = "INVALID_FILTER_SPEC"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodePersistence       ErrorCode = "PERSISTENCE_FAILED"

	// ErrCodeSilentBuffer is a warning, not a failure: the stage still
	// returned a usable buffer.
	ErrCodeSilentBuffer ErrorCode = "SILENT_BUFFER"
)

// Sentinels for errors.Is. They match any *Error carrying the same code.
var (
	ErrDecode            = &Error{Code: ErrCodeDecode}
	ErrEncode            = &Error{Code: ErrCodeEncode}
	ErrEmptyInput        = &Error{Code: ErrCodeEmptyInput}
	ErrEmptyBuffer       = &Error{Code: ErrCodeEmptyBuffer}
	ErrInvalidParameter  = &Error{Code: ErrCodeInvalidParameter}
	ErrInvalidFilterSpec = &Error{Code: ErrCodeInvalidFilterSpec}
	ErrNotFound          = &Error{Code: ErrCodeNotFound}
	ErrPersistence       = &Error{Code: ErrCodePersistence}
	ErrSilentBuffer      = &Error{Code: ErrCodeSilentBuffer}
)

// Error is the single error type reported by the pipeline and the archive.
type Error struct {
	Code    ErrorCode `json:"code"`
	Op      string    `json:"op,omitempty"`
	Param   string    `json:"param,omitempty"`
	Bound   string    `json:"bound,omitempty"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Param != "" {
		msg = fmt.Sprintf("%s (param %s, want %s)", msg, e.Param, e.Bound)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on code so that sentinels work through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Retryable reports whether the same call may succeed if repeated unchanged.
// Only storage failures are retryable; decode and validation failures need a
// different input.
func (e *Error) Retryable() bool {
	return e.Code == ErrCodePersistence
}

// Warning reports whether the error is informational.
func (e *Error) Warning() bool {
	return e.Code == ErrCodeSilentBuffer
}

// NewError creates a new pipeline error
func NewError(code ErrorCode, op, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Cause:   cause,
	}
}

// InvalidParameter reports a scalar outside its domain.
func InvalidParameter(op, param, bound string, value any) *Error {
	return &Error{
		Code:    ErrCodeInvalidParameter,
		Op:      op,
		Param:   param,
		Bound:   bound,
		Message: fmt.Sprintf("invalid %s %v", param, value),
	}
}

// InvalidFilterSpec reports a filter spec or signal the filter cannot handle.
func InvalidFilterSpec(op, param, bound, message string) *Error {
	return &Error{
		Code:    ErrCodeInvalidFilterSpec,
		Op:      op,
		Param:   param,
		Bound:   bound,
		Message: message,
	}
}

// Persistence wraps a storage failure.
func Persistence(op, message string, cause error) *Error {
	return NewError(ErrCodePersistence, op, message, cause)
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsWarning reports whether err is a non-fatal warning.
func IsWarning(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Warning()
}

// IsRetryable reports whether err is worth retrying unchanged.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}
