// Package player parses player command flags and runs one portal subcommand.
package player

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	entrypoint "github.com/louisbranch/tapestry/internal/platform/cmd"
	playersvc "github.com/louisbranch/tapestry/internal/services/player"
	"github.com/louisbranch/tapestry/internal/services/shared/apiclient/tokenstore"
)

// Config holds player command configuration.
type Config struct {
	APIOrigin string        `env:"API_ORIGIN"        envDefault:"http://localhost:5000"`
	TokenKind string        `env:"PLAYER_TOKEN_KIND" envDefault:"local"`
	TokenDir  string        `env:"TOKEN_DIR"`
	Timeout   time.Duration `env:"HTTP_TIMEOUT"      envDefault:"10s"`

	Command string
	Args    []string
}

// ParseConfig parses environment and flags into a Config. The first
// positional argument names the subcommand.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.APIOrigin, "api", cfg.APIOrigin, "API origin")
	fs.StringVar(&cfg.TokenKind, "token-kind", cfg.TokenKind, "token storage: local or session")
	fs.StringVar(&cfg.TokenDir, "token-dir", cfg.TokenDir, "directory for stored tokens")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if fs.NArg() == 0 {
		return Config{}, errors.New("a subcommand is required: " + usage)
	}
	cfg.Command = fs.Arg(0)
	cfg.Args = fs.Args()[1:]
	return cfg, nil
}

// Run executes the configured subcommand.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServicePlayer, func(ctx context.Context) error {
		session, err := playersvc.Connect(playersvc.ConnectOptions{
			Origin:    cfg.APIOrigin,
			TokenKind: tokenstore.Kind(cfg.TokenKind),
			TokenDir:  cfg.TokenDir,
			Timeout:   cfg.Timeout,
		})
		if err != nil {
			return err
		}
		return Execute(ctx, session, os.Stdin, os.Stdout, cfg.Command, cfg.Args)
	})
}
