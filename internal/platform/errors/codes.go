// Package errors provides structured domain errors with HTTP status mapping.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Request errors
	CodeInvalidRequest Code = "INVALID_REQUEST"
	CodeRateLimited    Code = "RATE_LIMITED"

	// Auth errors
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeTokenInvalid       Code = "TOKEN_INVALID"
	CodeTokenExpired       Code = "TOKEN_EXPIRED"

	// Account errors
	CodeAccountEmailTaken   Code = "ACCOUNT_EMAIL_TAKEN"
	CodeAccountInvalidInput Code = "ACCOUNT_INVALID_INPUT"
	CodeAccountInvalidRole  Code = "ACCOUNT_INVALID_ROLE"

	// Character errors
	CodeCharacterEmptyName     Code = "CHARACTER_EMPTY_NAME"
	CodeCharacterInvalidStatus Code = "CHARACTER_INVALID_STATUS"
	CodeCharacterInvalidSheet  Code = "CHARACTER_INVALID_SHEET"
	CodeCharacterInvalidPatch  Code = "CHARACTER_INVALID_PATCH"
	CodeCharacterProtected     Code = "CHARACTER_PROTECTED_FIELD"

	// Listing errors
	CodeInvalidFilter Code = "INVALID_FILTER"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidRequest,
		CodeAccountInvalidInput,
		CodeAccountInvalidRole,
		CodeCharacterEmptyName,
		CodeCharacterInvalidStatus,
		CodeCharacterInvalidSheet,
		CodeCharacterInvalidPatch,
		CodeCharacterProtected,
		CodeInvalidFilter:
		return http.StatusBadRequest

	case CodeUnauthenticated,
		CodeInvalidCredentials,
		CodeTokenInvalid,
		CodeTokenExpired:
		return http.StatusUnauthorized

	case CodeForbidden:
		return http.StatusForbidden

	case CodeNotFound:
		return http.StatusNotFound

	case CodeAccountEmailTaken:
		return http.StatusConflict

	case CodeRateLimited:
		return http.StatusTooManyRequests

	default:
		return http.StatusInternalServerError
	}
}
