package httpapi

import (
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/louisbranch/tapestry/internal/platform/errors"
	"github.com/louisbranch/tapestry/internal/platform/httpx"
	"github.com/louisbranch/tapestry/internal/platform/requestctx"
	"github.com/louisbranch/tapestry/internal/services/auth/storage"
)

var (
	errAuthRequired = apperrors.New(apperrors.CodeUnauthenticated, "authentication required")
	errAdminOnly    = apperrors.New(apperrors.CodeForbidden, "admin role required")
)

// bearerToken extracts the token from an Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

// Authenticate resolves a bearer token into a request principal. Requests
// without a token pass through anonymously; a present but invalid token is
// rejected. Roles come from the stored account so role changes apply to
// existing sessions.
func (h *Handler) Authenticate() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := h.tokens.Parse(raw)
			if err != nil {
				httpx.WriteError(w, err)
				return
			}
			acct, err := h.accounts.GetAccount(r.Context(), claims.AccountID)
			if errors.Is(err, storage.ErrNotFound) {
				httpx.WriteError(w, apperrors.New(apperrors.CodeTokenInvalid, "account no longer exists"))
				return
			}
			if err != nil {
				httpx.WriteError(w, err)
				return
			}
			ctx := requestctx.WithPrincipal(r.Context(), requestctx.Principal{
				AccountID: acct.ID,
				Roles:     acct.Roles,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requestctx.PrincipalFromContext(r.Context()); !ok {
			httpx.WriteError(w, errAuthRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose principal lacks the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, _ := requestctx.PrincipalFromContext(r.Context())
		if !principal.IsAdmin() {
			httpx.WriteError(w, errAdminOnly)
			return
		}
		next.ServeHTTP(w, r)
	}))
}
