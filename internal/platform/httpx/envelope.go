package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	apperrors "github.com/louisbranch/tapestry/internal/platform/errors"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Envelope is the response shape of every API endpoint.
type Envelope struct {
	Success bool            `json:"success"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Message string          `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// WriteJSON writes a JSON response with the provided status code.
func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return fmt.Errorf("response writer is required")
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}

// WriteOK writes a successful envelope around payload.
func WriteOK(w http.ResponseWriter, status int, payload any, message string) {
	env := Envelope{Success: true, Message: message}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			WriteError(w, fmt.Errorf("encode payload: %w", err))
			return
		}
		env.Payload = raw
	}
	if err := WriteJSON(w, status, env); err != nil {
		log.Printf("write response: %v", err)
	}
}

// WriteError writes a failed envelope using the domain status mapping.
// Internal failures are logged and masked.
func WriteError(w http.ResponseWriter, err error) {
	if w == nil || err == nil {
		return
	}
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
	}
	env := Envelope{
		Success: false,
		Message: apperrors.PublicMessage(err),
		Code:    string(apperrors.CodeOf(err)),
	}
	if writeErr := WriteJSON(w, status, env); writeErr != nil {
		log.Printf("write error response: %v", writeErr)
	}
}

// DecodeJSON reads a bounded JSON body into dst.
func DecodeJSON(r *http.Request, dst any) error {
	if r == nil || r.Body == nil {
		return apperrors.New(apperrors.CodeInvalidRequest, "request body is required")
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.New(apperrors.CodeInvalidRequest, "request body is required")
		}
		if domainErr, ok := apperrors.As(err); ok {
			return domainErr
		}
		return apperrors.Wrap(apperrors.CodeInvalidRequest, "malformed JSON body", err)
	}
	return nil
}
