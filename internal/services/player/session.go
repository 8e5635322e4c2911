package player

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/louisbranch/tapestry/internal/platform/clock"
	"github.com/louisbranch/tapestry/internal/platform/dotpath"
	"github.com/louisbranch/tapestry/internal/platform/telemetry/metrics"
	"github.com/louisbranch/tapestry/internal/services/shared/alert"
	"github.com/louisbranch/tapestry/internal/services/shared/apiclient"
	"github.com/louisbranch/tapestry/internal/services/shared/apiclient/tokenstore"
	"github.com/louisbranch/tapestry/internal/services/shared/optimistic"
	"github.com/louisbranch/tapestry/internal/services/shared/querycache"
)

// Cache freshness per query.
const (
	ProfileStaleTime = 60 * time.Second
	SheetsStaleTime  = 30 * time.Second
	SheetStaleTime   = 15 * time.Second
)

var (
	// ErrSignedOut is returned by queries that need a session when none exists.
	ErrSignedOut = errors.New("not signed in")
	// ErrSessionExpired is returned when the API rejects the stored token.
	ErrSessionExpired = errors.New("session expired, sign in again")
)

// Cache keys.
var (
	KeyMe         = querycache.Key{"me"}
	KeyCharacters = querycache.Key{"characters"}
)

// KeyCharacter is the cache key of one sheet.
func KeyCharacter(id string) querycache.Key {
	return querycache.Key{"character", id}
}

// Options configures a Session.
type Options struct {
	Client *apiclient.Client
	Tokens *tokenstore.Store
	Clock  clock.Clock
	// Metrics records mutation outcomes when set.
	Metrics *metrics.Registry
	// RetryDelay is the pause before a failed query is retried.
	RetryDelay time.Duration
}

// Session owns the client, token store, query cache, mutation coordinator and
// alert queue of one signed-in (or signed-out) player.
type Session struct {
	client *apiclient.Client
	tokens *tokenstore.Store
	clock  clock.Clock
	cache  *querycache.Store
	coord  *optimistic.Coordinator
	alerts *alert.Queue

	retryDelay time.Duration
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
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 500 * time.Millisecond
	}
	s := &Session{
		client:     opts.Client,
		tokens:     opts.Tokens,
		clock:      clk,
		cache:      querycache.New(clk),
		alerts:     alert.NewQueue(clk),
		retryDelay: retryDelay,
	}
	coord, err := optimistic.New(optimistic.Options{
		Store: s.cache,
		Writer: optimistic.WriterFunc(func(ctx context.Context, id string, patch dotpath.Patch) (optimistic.Record, error) {
			return s.client.UpdateCharacter(ctx, id, patch)
		}),
		Reader: optimistic.ReaderFunc(func(ctx context.Context, id string) (optimistic.Record, error) {
			return s.client.GetCharacter(ctx, id)
		}),
		KeyFor:      KeyCharacter,
		ReadOptions: querycache.FetchOptions{StaleTime: SheetStaleTime, Retry: 1, RetryDelay: retryDelay},
		Metrics:     opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build coordinator: %w", err)
	}
	s.coord = coord
	if token, ok := s.tokens.Get(); ok {
		s.client.SetAuthToken(token)
	}
	return s, nil
}

// Alerts returns the session's alert queue.
func (s *Session) Alerts() *alert.Queue { return s.alerts }

// Cache returns the session's query cache.
func (s *Session) Cache() *querycache.Store { return s.cache }

// Coordinator returns the session's mutation coordinator.
func (s *Session) Coordinator() *optimistic.Coordinator { return s.coord }

// SignedIn reports whether a token is stored.
func (s *Session) SignedIn() bool {
	_, ok := s.tokens.Get()
	return ok
}

// Me returns the cached profile, loading it when stale. Without a stored
// token it returns (nil, nil) and sends no request.
func (s *Session) Me(ctx context.Context) (*apiclient.Profile, error) {
	if !s.SignedIn() {
		return nil, nil
	}
	data, err := s.cache.Fetch(ctx, KeyMe, querycache.FetchOptions{StaleTime: ProfileStaleTime}, func(ctx context.Context) (any, error) {
		return s.client.Me(ctx)
	})
	if err != nil {
		if apiclient.StatusOf(err) == http.StatusUnauthorized {
			_ = s.Logout()
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	profile, ok := data.(apiclient.Profile)
	if !ok {
		return nil, fmt.Errorf("cached profile is %T", data)
	}
	return &profile, nil
}

// Login signs in, stores and attaches the token, and caches the profile.
func (s *Session) Login(ctx context.Context, email, password string) (apiclient.Profile, error) {
	resp, err := s.client.Login(ctx, email, password)
	if err != nil {
		return apiclient.Profile{}, err
	}
	return s.begin(ctx, resp.Token)
}

// Register creates an account and signs in with it.
func (s *Session) Register(ctx context.Context, input apiclient.RegisterInput) (apiclient.Profile, error) {
	resp, err := s.client.Register(ctx, input)
	if err != nil {
		return apiclient.Profile{}, err
	}
	return s.begin(ctx, resp.Token)
}

// begin replaces any previous session with token. A token whose profile
// cannot be loaded is not kept.
func (s *Session) begin(ctx context.Context, token string) (apiclient.Profile, error) {
	s.clearCache()
	s.client.SetAuthToken(token)
	profile, err := s.client.Me(ctx)
	if err != nil {
		s.client.SetAuthToken("")
		if clearErr := s.tokens.Clear(); clearErr != nil {
			err = errors.Join(err, clearErr)
		}
		return apiclient.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	if err := s.tokens.Set(token); err != nil {
		s.client.SetAuthToken("")
		return apiclient.Profile{}, err
	}
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
