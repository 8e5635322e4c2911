package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation matches API rejections of the request content (400, 422).
	ErrValidation = errors.New("request rejected by validation")
	// ErrTransport matches every other failure: network errors and non-2xx
	// statuses that are not validation errors.
	ErrTransport = errors.New("request failed")
)

// APIError is a non-success API response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api %d: %s", e.Status, e.Message)
}

// Is matches ErrValidation for 400/422 responses and ErrTransport otherwise.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.validation()
	case ErrTransport:
		return !e.validation()
	}
	return false
}

func (e *APIError) validation() bool {
	return e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity
}

// StatusOf returns the HTTP status of an API error, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// MessageOf returns the API's message for err when it carries one.
func MessageOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
