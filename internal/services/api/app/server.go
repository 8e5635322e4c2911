package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	platformgrpc "github.com/louisbranch/tapestry/internal/platform/grpc"
	"github.com/louisbranch/tapestry/internal/platform/httpx"
	"github.com/louisbranch/tapestry/internal/platform/telemetry/metrics"
	"github.com/louisbranch/tapestry/internal/platform/timeouts"
	authhttp "github.com/louisbranch/tapestry/internal/services/auth/api/httpapi"
	authstorage "github.com/louisbranch/tapestry/internal/services/auth/storage"
	authsqlite "github.com/louisbranch/tapestry/internal/services/auth/storage/sqlite"
	"github.com/louisbranch/tapestry/internal/services/auth/token"
	gamehttp "github.com/louisbranch/tapestry/internal/services/game/api/httpapi"
	gamestorage "github.com/louisbranch/tapestry/internal/services/game/storage"
	gamesqlite "github.com/louisbranch/tapestry/internal/services/game/storage/sqlite"
)

// DefaultPrefix is the path prefix of every REST route.
const DefaultPrefix = "/api/v1"

// Health components reported by the gRPC listener.
const (
	ComponentAuth = "tapestry.auth"
	ComponentGame = "tapestry.game"
)

// storeCheckInterval is how often store health is re-evaluated.
const storeCheckInterval = 30 * time.Second

// Config describes the API process.
type Config struct {
	HTTPAddr   string
	HealthAddr string
	AuthDBPath string
	GameDBPath string
	JWTSecret  string
	TokenTTL   time.Duration
	// AdminEmails receive the admin role when they register.
	AdminEmails []string
	// LoginPerMinute and LoginBurst throttle login attempts per email.
	LoginPerMinute float64
	LoginBurst     int
}

// Deps are the collaborators NewHandler wires together.
type Deps struct {
	Accounts     authstorage.AccountStore
	Characters   gamestorage.CharacterStore
	Tokens       *token.Issuer
	Metrics      *metrics.Registry
	AdminEmails  []string
	LoginLimiter *httpx.KeyedLimiter
	Prefix       string
	Now          func() time.Time
	IDGenerator  func() (string, error)
}

// NewHandler builds the full HTTP handler: REST routes under the prefix plus
// /metrics, behind the shared middleware chain.
func NewHandler(deps Deps) (http.Handler, error) {
	prefix := strings.TrimRight(deps.Prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	games, err := gamehttp.New(deps.Characters, deps.Now, deps.IDGenerator)
	if err != nil {
		return nil, err
	}
	accounts, err := authhttp.New(authhttp.Options{
		Accounts:        deps.Accounts,
		Tokens:          deps.Tokens,
		LoginLimiter:    deps.LoginLimiter,
		AdminEmails:     deps.AdminEmails,
		OnDeleteAccount: games.DeletePlayerSheets,
		Now:             deps.Now,
		IDGenerator:     deps.IDGenerator,
	})
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	accounts.Register(mux, prefix)
	games.Register(mux, prefix)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}
	mux.HandleFunc(prefix+"/", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, routeNotFound(r))
	})

	// Instrument sits closest to the mux so it sees the matched route pattern.
	chain := httpx.Chain(mux,
		httpx.RequestID(),
		httpx.ServiceName(),
		httpx.RecoverPanic(),
		accounts.Authenticate(),
		httpx.Instrument(deps.Metrics),
	)
	return otelhttp.NewHandler(chain, "tapestry-api"), nil
}

// Server hosts the API process.
type Server struct {
	httpListener   net.Listener
	healthListener net.Listener
	httpServer     *http.Server
	health         *platformgrpc.HealthServer
	authStore      *authsqlite.Store
	gameStore      *gamesqlite.Store
}

// New opens the stores and listeners described by cfg.
func New(ctx context.Context, cfg Config) (*Server, error) {
	issuer, err := token.NewIssuer(token.Config{Secret: []byte(cfg.JWTSecret), TTL: cfg.TokenTTL})
	if err != nil {
		return nil, fmt.Errorf("configure tokens: %w", err)
	}
	authStore, err := openAuthStore(ctx, cfg.AuthDBPath)
	if err != nil {
		return nil, err
	}
	gameStore, err := openGameStore(ctx, cfg.GameDBPath)
	if err != nil {
		_ = authStore.Close()
		return nil, err
	}
	s := &Server{authStore: authStore, gameStore: gameStore}

	var limiter *httpx.KeyedLimiter
	if cfg.LoginPerMinute > 0 {
		limiter = httpx.NewKeyedLimiter(cfg.LoginPerMinute, max(cfg.LoginBurst, 1))
	}
	handler, err := NewHandler(Deps{
		Accounts:     authStore,
		Characters:   gameStore,
		Tokens:       issuer,
		Metrics:      metrics.NewRegistry(),
		AdminEmails:  cfg.AdminEmails,
		LoginLimiter: limiter,
	})
	if err != nil {
		s.closeStores()
		return nil, err
	}

	s.httpListener, err = net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		s.closeStores()
		return nil, fmt.Errorf("listen on http addr %s: %w", cfg.HTTPAddr, err)
	}
	if strings.TrimSpace(cfg.HealthAddr) != "" {
		s.healthListener, err = net.Listen("tcp", cfg.HealthAddr)
		if err != nil {
			_ = s.httpListener.Close()
			s.closeStores()
			return nil, fmt.Errorf("listen on health addr %s: %w", cfg.HealthAddr, err)
		}
		s.health = platformgrpc.NewHealthServer(ComponentAuth, ComponentGame)
	}
	s.httpServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	return s, nil
}

// Addr returns the HTTP listener address.
func (s *Server) Addr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// HealthAddr returns the gRPC health listener address, or "" when disabled.
func (s *Server) HealthAddr() string {
	if s == nil || s.healthListener == nil {
		return ""
	}
	return s.healthListener.Addr().String()
}

// Run creates and serves an API server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve blocks until ctx ends or a listener fails.
func (s *Server) Serve(ctx context.Context) error {
	defer s.closeStores()

	group, groupCtx := errgroup.WithContext(ctx)

	log.Printf("api server listening at %v", s.httpListener.Addr())
	group.Go(func() error {
		if err := s.httpServer.Serve(s.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	if s.health != nil {
		log.Printf("api health listening at %v", s.healthListener.Addr())
		s.checkStores(groupCtx)
		s.health.SetComponent("", true)
		group.Go(func() error {
			return s.health.Serve(groupCtx, s.healthListener)
		})
		group.Go(func() error {
			ticker := time.NewTicker(storeCheckInterval)
			defer ticker.Stop()
			for {
				select {
				case <-groupCtx.Done():
					return nil
				case <-ticker.C:
					s.checkStores(groupCtx)
				}
			}
		})
	}
	return group.Wait()
}

// checkStores reports each store's reachability on the health listener.
func (s *Server) checkStores(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, timeouts.GRPCDial)
	defer cancel()
	for component, ping := range map[string]func(context.Context) error{
		ComponentAuth: s.authStore.Ping,
		ComponentGame: s.gameStore.Ping,
	} {
		err := ping(checkCtx)
		if err != nil {
			log.Printf("store health component=%s err=%v", component, err)
		}
		s.health.SetComponent(component, err == nil)
	}
}

func (s *Server) closeStores() {
	if s == nil {
		return
	}
	if s.authStore != nil {
		if err := s.authStore.Close(); err != nil {
			log.Printf("close auth store: %v", err)
		}
	}
	if s.gameStore != nil {
		if err := s.gameStore.Close(); err != nil {
			log.Printf("close game store: %v", err)
		}
	}
}

func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}
	return nil
}

func openAuthStore(ctx context.Context, path string) (*authsqlite.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = filepath.Join("data", "auth.db")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	store, err := authsqlite.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open auth sqlite store: %w", err)
	}
	return store, nil
}

func openGameStore(ctx context.Context, path string) (*gamesqlite.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = filepath.Join("data", "game.db")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	store, err := gamesqlite.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open game sqlite store: %w", err)
	}
	return store, nil
}
