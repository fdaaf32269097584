package spec

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes loader and generation errors for clearer handling and messaging.
type ErrorCode string

const (
	InputError      ErrorCode = "InputError"
	NetworkError    ErrorCode = "NetworkError"
	ParseError      ErrorCode = "ParseError"
	ValidationError ErrorCode = "ValidationError"

	UnsupportedVersion       ErrorCode = "UnsupportedVersion"
	UnresolvedReference      ErrorCode = "UnresolvedReference"
	UnknownParameterLocation ErrorCode = "UnknownParameterLocation"
	CycleOrDepthExceeded     ErrorCode = "CycleOrDepthExceeded"
	UnknownSchemaShape       ErrorCode = "UnknownSchemaShape"
)

// SpecError is a structured error with optional location and JSON Pointer.
type SpecError struct {
	Code        ErrorCode
	Message     string
	Location    string // file path or URL
	JSONPointer string // e.g. "#/paths/~1pets/get"
	Cause       error
}

func (e *SpecError) Error() string { return e.Message }
func (e *SpecError) Unwrap() error { return e.Cause }

// IsCode reports whether err wraps a SpecError carrying code.
func IsCode(err error, code ErrorCode) bool {
	var se *SpecError
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == code
}

func newRefError(code ErrorCode, pointer, format string, args ...any) *SpecError {
	return &SpecError{Code: code, Message: fmt.Sprintf(format, args...), JSONPointer: pointer}
}
