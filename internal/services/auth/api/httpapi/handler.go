package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strings"
	"time"

	apperrors "github.com/louisbranch/tapestry/internal/platform/errors"
	"github.com/louisbranch/tapestry/internal/platform/httpx"
	"github.com/louisbranch/tapestry/internal/platform/id"
	"github.com/louisbranch/tapestry/internal/platform/requestctx"
	"github.com/louisbranch/tapestry/internal/services/auth/account"
	"github.com/louisbranch/tapestry/internal/services/auth/storage"
	"github.com/louisbranch/tapestry/internal/services/auth/token"
)

// AccountDeleteHook runs before an account is removed, e.g. to delete the
// account's character sheets.
type AccountDeleteHook func(ctx context.Context, accountID string) error

// Options configures a Handler.
type Options struct {
	Accounts storage.AccountStore
	Tokens   *token.Issuer
	// LoginLimiter throttles login attempts per email. Nil disables throttling.
	LoginLimiter *httpx.KeyedLimiter
	// AdminEmails receive the admin role on registration.
	AdminEmails     []string
	OnDeleteAccount AccountDeleteHook
	Now             func() time.Time
	IDGenerator     func() (string, error)
}

// Handler serves account endpoints.
type Handler struct {
	accounts        storage.AccountStore
	tokens          *token.Issuer
	loginLimiter    *httpx.KeyedLimiter
	adminEmails     []string
	onDeleteAccount AccountDeleteHook
	clock           func() time.Time
	idGenerator     func() (string, error)
}

// New builds a Handler.
func New(opts Options) (*Handler, error) {
	if opts.Accounts == nil {
		return nil, errors.New("account store is required")
	}
	if opts.Tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	h := &Handler{
		accounts:        opts.Accounts,
		tokens:          opts.Tokens,
		loginLimiter:    opts.LoginLimiter,
		onDeleteAccount: opts.OnDeleteAccount,
		clock:           opts.Now,
		idGenerator:     opts.IDGenerator,
	}
	for _, email := range opts.AdminEmails {
		if email = account.NormalizeEmail(email); email != "" {
			h.adminEmails = append(h.adminEmails, email)
		}
	}
	if h.clock == nil {
		h.clock = time.Now
	}
	if h.idGenerator == nil {
		h.idGenerator = id.NewID
	}
	return h, nil
}

// Register mounts the account routes under prefix (e.g. "/api/v1").
func (h *Handler) Register(mux *http.ServeMux, prefix string) {
	mux.HandleFunc("POST "+prefix+"/auth/register", h.register)
	mux.HandleFunc("POST "+prefix+"/auth/login", h.login)
	mux.Handle("GET "+prefix+"/auth/me", RequireAuth(http.HandlerFunc(h.me)))
	mux.Handle("GET "+prefix+"/admin/accounts", RequireAdmin(http.HandlerFunc(h.listAccounts)))
	mux.Handle("PUT "+prefix+"/admin/accounts/{id}/roles", RequireAdmin(http.HandlerFunc(h.setRoles)))
	mux.Handle("DELETE "+prefix+"/admin/accounts/{id}", RequireAdmin(http.HandlerFunc(h.deleteAccount)))
}

// Profile is the public view of an account.
type Profile struct {
	ID              string    `json:"_id"`
	Email           string    `json:"email"`
	FullName        string    `json:"fullName,omitempty"`
	Roles           []string  `json:"roles"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func profileOf(a account.Account) Profile {
	roles := a.Roles
	if roles == nil {
		roles = []string{}
	}
	return Profile{
		ID:              a.ID,
		Email:           a.Email,
		FullName:        a.FullName,
		Roles:           roles,
		IsEmailVerified: a.IsEmailVerified,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

// Session is the payload of register and login.
type Session struct {
	Token           string             `json:"token"`
	ExpiresAt       time.Time          `json:"expiresAt"`
	IsEmailVerified bool               `json:"isEmailVerified"`
	ProfileRefs     map[string]*string `json:"profileRefs"`
}

func (h *Handler) issueSession(a account.Account) (Session, error) {
	raw, claims, err := h.tokens.Issue(a.ID, a.Email, a.Roles)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{
		Token:           raw,
		ExpiresAt:       claims.ExpiresAt,
		IsEmailVerified: a.IsEmailVerified,
		ProfileRefs:     map[string]*string{"player": &a.ID},
	}, nil
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var input account.RegisterInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.WriteError(w, err)
		return
	}
	created, err := account.Create(input, h.clock, h.idGenerator)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if slices.Contains(h.adminEmails, created.Email) {
		created.Roles, _ = account.NormalizeRoles(append(created.Roles, account.RoleAdmin))
	}
	if err := h.accounts.CreateAccount(r.Context(), created); err != nil {
		httpx.WriteError(w, err)
		return
	}
	session, err := h.issueSession(created)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	log.Printf("account registered id=%s", created.ID)
	httpx.WriteOK(w, http.StatusCreated, session, "account created")
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var input account.LoginInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.WriteError(w, err)
		return
	}
	input.Email = account.NormalizeEmail(input.Email)
	if err := account.ValidateInput(input); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if h.loginLimiter != nil && !h.loginLimiter.Allow("login:"+input.Email) {
		httpx.WriteError(w, apperrors.New(apperrors.CodeRateLimited, "too many login attempts, try again later"))
		return
	}
	acct, err := h.accounts.GetAccountByEmail(r.Context(), input.Email)
	if errors.Is(err, storage.ErrNotFound) {
		httpx.WriteError(w, account.ErrInvalidCredentials)
		return
	}
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if err := acct.CheckPassword(input.Password); err != nil {
		httpx.WriteError(w, err)
		return
	}
	session, err := h.issueSession(acct)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, session, "login successful")
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	acct, err := h.accounts.GetAccount(r.Context(), requestctx.UserIDFromContext(r.Context()))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteOK(w, http.StatusOK, profileOf(acct), "")
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.ListAccounts(r.Context())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	profiles := make([]Profile, 0, len(accounts))
	for _, a := range accounts {
		profiles = append(profiles, profileOf(a))
	}
	httpx.WriteOK(w, http.StatusOK, profiles, "")
}

type rolesRequest struct {
	Roles []string `json:"roles"`
}

func (h *Handler) setRoles(w http.ResponseWriter, r *http.Request) {
	accountID := strings.TrimSpace(r.PathValue("id"))
	var input rolesRequest
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.WriteError(w, err)
		return
	}
	roles, err := account.NormalizeRoles(input.Roles)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if accountID == requestctx.UserIDFromContext(r.Context()) && !slices.Contains(roles, account.RoleAdmin) {
		httpx.WriteError(w, apperrors.New(apperrors.CodeForbidden, "admins cannot remove their own admin role"))
		return
	}
	updated, err := h.accounts.SetAccountRoles(r.Context(), accountID, roles)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	log.Printf("account roles updated id=%s roles=%s", updated.ID, strings.Join(updated.Roles, ","))
	httpx.WriteOK(w, http.StatusOK, profileOf(updated), "roles updated")
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := strings.TrimSpace(r.PathValue("id"))
	if accountID == requestctx.UserIDFromContext(ctx) {
		httpx.WriteError(w, apperrors.New(apperrors.CodeForbidden, "admins cannot delete their own account"))
		return
	}
	if _, err := h.accounts.GetAccount(ctx, accountID); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if h.onDeleteAccount != nil {
		if err := h.onDeleteAccount(ctx, accountID); err != nil {
			httpx.WriteError(w, fmt.Errorf("delete account data: %w", err))
			return
		}
	}
	if err := h.accounts.DeleteAccount(ctx, accountID); err != nil {
		httpx.WriteError(w, err)
		return
	}
	log.Printf("account deleted id=%s", accountID)
	httpx.WriteOK(w, http.StatusOK, nil, "account deleted")
}
