package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/tapestry/internal/platform/clock"
	"github.com/louisbranch/tapestry/internal/services/shared/alert"
	"github.com/louisbranch/tapestry/internal/services/shared/apiclient"
	"github.com/louisbranch/tapestry/internal/services/shared/apiclient/tokenstore"
	"github.com/louisbranch/tapestry/internal/services/shared/querycache"
)

// RoleAdmin is the role required to sign in.
const RoleAdmin = "admin"

// AccountsStaleTime is how long the account list stays fresh.
const AccountsStaleTime = 30 * time.Second

var (
	// ErrForbidden is returned when a non-admin signs in.
	ErrForbidden = errors.New("admin role required")
	// ErrSignedOut is returned by calls that need a session when none exists.
	ErrSignedOut = errors.New("not signed in")
)

// Cache keys.
var (
	KeyMe         = querycache.Key{"me"}
	KeyAccounts   = querycache.Key{"accounts"}
	KeyCharacters = querycache.Key{"characters"}
)

// Options configures a Session.
type Options struct {
	Client *apiclient.Client
	Tokens *tokenstore.Store
	Clock  clock.Clock
}

// Session is one admin's dashboard state.
type Session struct {
	client *apiclient.Client
	tokens *tokenstore.Store
	cache  *querycache.Store
	alerts *alert.Queue
}

// New builds a Session and attaches any stored token to the client.
func New(opts Options) (*Session, error) {
	if opts.Client == nil {
		return nil, errors.New("api client is required")
	}
	if opts.Tokens == nil {
		return nil, errors.New("token store is required")
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	s := &Session{
		client: opts.Client,
		tokens: opts.Tokens,
		cache:  querycache.New(clk),
		alerts: alert.NewQueue(clk),
	}
	if token, ok := s.tokens.Get(); ok {
		s.client.SetAuthToken(token)
	}
	return s, nil
}

// Alerts returns the session's alert queue.
func (s *Session) Alerts() *alert.Queue { return s.alerts }

// Cache returns the session's query cache.
func (s *Session) Cache() *querycache.Store { return s.cache }

// SignedIn reports whether a token is stored.
func (s *Session) SignedIn() bool {
	_, ok := s.tokens.Get()
	return ok
}

// Login signs in and keeps the session only when the profile is an admin.
func (s *Session) Login(ctx context.Context, email, password string) (apiclient.Profile, error) {
	resp, err := s.client.Login(ctx, email, password)
	if err != nil {
		return apiclient.Profile{}, err
	}
	s.client.SetAuthToken(resp.Token)
	profile, err := s.client.Me(ctx)
	if err != nil {
		s.client.SetAuthToken("")
		return apiclient.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	if !profile.HasRole(RoleAdmin) {
		s.client.SetAuthToken("")
		return apiclient.Profile{}, ErrForbidden
	}
	if err := s.tokens.Set(resp.Token); err != nil {
		s.client.SetAuthToken("")
		return apiclient.Profile{}, err
	}
	s.clearCache()
	s.cache.Set(KeyMe, profile)
	return profile, nil
}

// Logout clears the stored token, the client token and every cached query.
func (s *Session) Logout() error {
	err := s.tokens.Clear()
	s.client.SetAuthToken("")
	s.clearCache()
	return err
}

func (s *Session) clearCache() {
	for _, key := range s.cache.Keys() {
		s.cache.Remove(key)
	}
}

// Accounts lists every account through the cache.
func (s *Session) Accounts(ctx context.Context) ([]apiclient.Profile, error) {
	if !s.SignedIn() {
		return nil, ErrSignedOut
	}
	data, err := s.cache.Fetch(ctx, KeyAccounts, querycache.FetchOptions{StaleTime: AccountsStaleTime}, func(ctx context.Context) (any, error) {
		return s.client.ListAccounts(ctx)
	})
	if err != nil {
		return nil, err
	}
	profiles, ok := data.([]apiclient.Profile)
	if !ok {
		return nil, fmt.Errorf("cached account list is %T", data)
	}
	return profiles, nil
}

// SetRoles replaces an account's roles. Roles are trimmed and lowercased
// before sending.
func (s *Session) SetRoles(ctx context.Context, accountID string, roles []string) (apiclient.Profile, error) {
	if !s.SignedIn() {
		return apiclient.Profile{}, ErrSignedOut
	}
	cleaned := make([]string, 0, len(roles))
	for _, role := range roles {
		if role = strings.ToLower(strings.TrimSpace(role)); role != "" {
			cleaned = append(cleaned, role)
		}
	}
	profile, err := s.client.SetAccountRoles(ctx, accountID, cleaned)
	if err != nil {
		s.alerts.AddMessage("Could not update roles: "+apiclient.MessageOf(err), alert.TypeError, 0)
		return apiclient.Profile{}, err
	}
	s.cache.Invalidate(KeyAccounts)
	s.alerts.AddMessage("Roles updated", alert.TypeSuccess, 0)
	return profile, nil
}

// DeleteAccount removes an account and its sheets.
func (s *Session) DeleteAccount(ctx context.Context, accountID string) error {
	if !s.SignedIn() {
		return ErrSignedOut
	}
	if err := s.client.DeleteAccount(ctx, accountID); err != nil {
		s.alerts.AddMessage("Could not delete account: "+apiclient.MessageOf(err), alert.TypeError, 0)
		return err
	}
	s.cache.Invalidate(KeyAccounts)
	s.cache.Invalidate(KeyCharacters)
	s.alerts.AddMessage("Account deleted", alert.TypeSuccess, 0)
	return nil
}

// Characters lists sheets across all players.
func (s *Session) Characters(ctx context.Context, params apiclient.ListParams) (apiclient.Page, error) {
	if !s.SignedIn() {
		return apiclient.Page{}, ErrSignedOut
	}
	key := querycache.Key{"characters", apiclient.CleanParams(params.Values()).Encode()}
	data, err := s.cache.Fetch(ctx, key, querycache.FetchOptions{StaleTime: AccountsStaleTime}, func(ctx context.Context) (any, error) {
		return s.client.ListCharacters(ctx, params)
	})
	if err != nil {
		return apiclient.Page{}, err
	}
	page, ok := data.(apiclient.Page)
	if !ok {
		return apiclient.Page{}, fmt.Errorf("cached sheet list is %T", data)
	}
	return page, nil
}
