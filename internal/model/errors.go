package model

import (
	"errors"
	"fmt"
)

// ErrorCode is the machine-readable half of an engine error. UI layers
// switch on the code and render the message inline.
type ErrorCode string

const (
	ErrCodeTaskNotFound      ErrorCode = "TASK_NOT_FOUND"
	ErrCodeValidation        ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeDependenciesNotMet ErrorCode = "DEPENDENCIES_NOT_MET"
	ErrCodeCyclicDependency  ErrorCode = "CYCLIC_DEPENDENCY"
	ErrCodeHasDependents     ErrorCode = "HAS_DEPENDENTS"
	ErrCodeInvalidRange      ErrorCode = "INVALID_RANGE"
	ErrCodeNoSlotsAvailable  ErrorCode = "NO_SLOTS_AVAILABLE"
)

type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the engine error code from err, or "" when err does
// not carry one.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
