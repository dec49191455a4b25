package usecase

import (
	"errors"
	"fmt"
)

// ErrorCode names the outcome kind of a turn. Every kind except
// ErrorBlankInput and ErrorInvalidInput still produces a recorded turn.
type ErrorCode string

const (
	ErrorBlankInput   ErrorCode = "BLANK_INPUT"
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorRateLimited  ErrorCode = "RATE_LIMITED"

	// Timeout, network error or non-2xx from the model.
	ErrorInterpreterTransport ErrorCode = "INTERPRETER_TRANSPORT"
	// Response text missing or not a single JSON object.
	ErrorInterpreterMalformed ErrorCode = "INTERPRETER_MALFORMED"

	ErrorInvalidCommand     ErrorCode = "INVALID_COMMAND"
	ErrorResourceValidation ErrorCode = "RESOURCE_VALIDATION"
	ErrorInternal           ErrorCode = "INTERNAL_ERROR"
)

// Error is returned by CommandService for the kinds that are not answered
// with a plain Reply. Reason is a short machine tag for logs.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CodeOf returns the code carried by err, ErrorInternal for any other
// non-nil error and "" for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var uerr *Error
	if errors.As(err, &uerr) && uerr.Code != "" {
		return uerr.Code
	}
	return ErrorInternal
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
