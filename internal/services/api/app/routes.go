package server

import (
	"net/http"

	apperrors "github.com/louisbranch/tapestry/internal/platform/errors"
)

func routeNotFound(r *http.Request) error {
	return apperrors.WithMetadata(apperrors.CodeNotFound, "route not found", map[string]string{
		"method": r.Method,
		"path":   r.URL.Path,
	})
}
