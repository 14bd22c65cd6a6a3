package errors

import "errors"

// Code identifies a structured error type used across the application.
type Code string

const (
	// Generic codes
	CodeUnknown            Code = "unknown"
	CodeConfigurationError Code = "configuration_error"
	CodeInvalidArgument    Code = "invalid_argument"

	// Selection and install errors
	CodeUnknownComponent   Code = "unknown_component"
	CodeNoCandidates       Code = "no_candidates"
	CodeUnresolvableRemote Code = "unresolvable_remote"
	CodeInstallFailed      Code = "install_failed"

	// Infrastructure errors
	CodeFetchFailed   Code = "fetch_failed"
	CodeInvalidFeed   Code = "invalid_feed"
	CodeStorageFailed Code = "storage_failed"
	CodeHostInvalid   Code = "host_invalid"
)

// Error represents a structured error with a machine-readable code plus message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

// Unwrap returns the wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// New wraps an error with a code/message.
func New(code Code, msg string, err error) Error {
	return Error{Code: code, Message: msg, Err: err}
}

// CodeOf walks the error chain and returns the first structured code found.
func CodeOf(err error) Code {
	var structured Error
	if errors.As(err, &structured) {
		return structured.Code
	}
	return CodeUnknown
}

// IsCode reports whether the error (or its unwrap chain) matches the provided code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsFatal reports whether an error must stop the whole run. Only
// "no candidates" is informational; everything else terminates.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) != CodeNoCandidates
}
