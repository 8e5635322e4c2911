// Package api parses API command flags and starts the REST server.
package api

import (
	"context"
	"errors"
	"flag"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/tapestry/internal/platform/cmd"
	server "github.com/louisbranch/tapestry/internal/services/api/app"
)

// Config holds API command configuration. Environment names carry the
// TAPESTRY_ prefix (API_ADDR reads TAPESTRY_API_ADDR).
type Config struct {
	HTTPAddr       string        `env:"API_ADDR"          envDefault:"localhost:5000"`
	HealthAddr     string        `env:"API_HEALTH_ADDR"   envDefault:"localhost:5001"`
	AuthDBPath     string        `env:"AUTH_DB_PATH"      envDefault:"data/auth.db"`
	GameDBPath     string        `env:"GAME_DB_PATH"      envDefault:"data/game.db"`
	JWTSecret      string        `env:"JWT_SECRET"`
	TokenTTL       time.Duration `env:"TOKEN_TTL"         envDefault:"168h"`
	AdminEmails    []string      `env:"ADMIN_EMAILS"      envSeparator:","`
	LoginPerMinute float64       `env:"LOGIN_PER_MINUTE"  envDefault:"10"`
	LoginBurst     int           `env:"LOGIN_BURST"       envDefault:"5"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.HealthAddr, "health-addr", cfg.HealthAddr, "gRPC health listen address (empty disables)")
	fs.StringVar(&cfg.AuthDBPath, "auth-db", cfg.AuthDBPath, "auth SQLite database path")
	fs.StringVar(&cfg.GameDBPath, "game-db", cfg.GameDBPath, "game SQLite database path")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", cfg.TokenTTL, "session token lifetime")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return Config{}, errors.New("TAPESTRY_JWT_SECRET is required")
	}
	return cfg, nil
}

// Run starts the API server.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceAPI, func(ctx context.Context) error {
		return server.Run(ctx, server.Config{
			HTTPAddr:       cfg.HTTPAddr,
			HealthAddr:     cfg.HealthAddr,
			AuthDBPath:     cfg.AuthDBPath,
			GameDBPath:     cfg.GameDBPath,
			JWTSecret:      cfg.JWTSecret,
			TokenTTL:       cfg.TokenTTL,
			AdminEmails:    cfg.AdminEmails,
			LoginPerMinute: cfg.LoginPerMinute,
			LoginBurst:     cfg.LoginBurst,
		})
	})
}
