package errors

import (
	stderrors "errors"
	"net/http"
	"sort"
	"strings"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Message safe to return to API callers
	Metadata map[string]string // Additional context (field names, limits)
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithMetadata creates a domain error with metadata describing the failure.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// As extracts the first domain error in err's chain.
func As(err error) (*Error, bool) {
	var domainErr *Error
	if stderrors.As(err, &domainErr) && domainErr != nil {
		return domainErr, true
	}
	return nil, false
}

// CodeOf returns the domain code for err, or CodeUnknown.
func CodeOf(err error) Code {
	if domainErr, ok := As(err); ok {
		return domainErr.Code
	}
	return CodeUnknown
}

// HTTPStatus resolves the response status for err. Non-domain errors map to 500.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if domainErr, ok := As(err); ok {
		return domainErr.Code.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the message callers may see. Internal failures are
// masked so storage details do not leak through the API.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	domainErr, ok := As(err)
	if !ok || domainErr.Code.HTTPStatus() == http.StatusInternalServerError {
		return "internal error"
	}
	if len(domainErr.Metadata) == 0 {
		return domainErr.Message
	}
	keys := make([]string, 0, len(domainErr.Metadata))
	for key := range domainErr.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+domainErr.Metadata[key])
	}
	return domainErr.Message + " (" + strings.Join(parts, ", ") + ")"
}
