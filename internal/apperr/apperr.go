package apperr

import (
	"errors"
	"fmt"
)

// Stable machine-readable codes surfaced to clients.
const (
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeNotConfigured        = "NOT_CONFIGURED"
	CodeBackendError         = "BACKEND_ERROR"
	CodeNoActiveConversation = "NO_ACTIVE_CONVERSATION"
	CodeValidationError      = "VALIDATION_ERROR"
	CodeUnknownMessageType   = "UNKNOWN_MESSAGE_TYPE"
	CodeInternalError        = "INTERNAL_ERROR"
)

// AppError carries a stable code plus a human-readable message.
// Every handler failure is converted into one of these before it
// reaches the wire.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func Unauthorized(message string) *AppError {
	return New(CodeUnauthorized, message)
}

func NotConfigured(backendId string) *AppError {
	return New(CodeNotConfigured, fmt.Sprintf("backend %q has no credential configured", backendId))
}

func BackendError(err error) *AppError {
	return Wrap(CodeBackendError, "upstream call failed", err)
}

func NoActiveConversation(requestId string) *AppError {
	return New(CodeNoActiveConversation, fmt.Sprintf("no active conversation for request %q", requestId))
}

func Validation(message string) *AppError {
	return New(CodeValidationError, message)
}

func UnknownMessageType(kind string) *AppError {
	return New(CodeUnknownMessageType, fmt.Sprintf("unknown message type %q", kind))
}

func Internal(err error) *AppError {
	return Wrap(CodeInternalError, "unexpected internal error", err)
}

// CodeOf extracts the stable code from any error, defaulting to
// INTERNAL_ERROR for plain errors.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternalError
}

// MessageOf extracts the user-visible message from any error.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return CodeOf(err) == code
}
