package models

import (
	"errors"
	"fmt"
)

// Stable error codes surfaced to API clients. Raw provider payloads are
// never leaked; provider-specific upload failures carry a "provider:"
// prefixed code.
const (
	CodeInvalidFile         = "invalid_file"
	CodeFileTooLarge        = "file_too_large"
	CodeInvalidFormat       = "invalid_format"
	CodeInvalidMIMEType     = "invalid_mime_type"
	CodePolicyRejected      = "policy_rejected"
	CodeMissingCredentials  = "missing_credentials"
	CodeInvalidSignature    = "invalid_signature"
	CodeExpiredSignature    = "expired_signature"
	CodeInvalidPayload      = "invalid_payload"
	CodeUnknownProvider     = "unknown_provider"
	CodeVideoNotFound       = "video_not_found"
	CodeInvalidTransition   = "invalid_transition"
	CodeProviderUnavailable = "provider_unavailable"
)

// CodedError is the uniform error shape produced at the orchestration
// boundary. Code is stable for clients; Message is human-readable.
type CodedError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *CodedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *CodedError) Unwrap() error {
	return e.Err
}

// NewError creates a coded error
func NewError(code, format string, args ...any) *CodedError {
	return &CodedError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError creates a coded error wrapping an underlying cause
func WrapError(code string, err error, format string, args ...any) *CodedError {
	return &CodedError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// CodeOf extracts the stable code from an error chain, or "internal"
// when the error carries no code
func CodeOf(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return "internal"
}

// MessageOf extracts the client-safe message from an error chain
func MessageOf(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Message
	}
	return "internal error"
}
