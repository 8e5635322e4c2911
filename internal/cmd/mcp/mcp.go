// Package mcp parses MCP command flags and selects stdio or HTTP transport.
package mcp

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/louisbranch/tapestry/internal/platform/cmd"
	mcpservice "github.com/louisbranch/tapestry/internal/services/mcp/service"
	playersvc "github.com/louisbranch/tapestry/internal/services/player"
	"github.com/louisbranch/tapestry/internal/services/shared/apiclient/tokenstore"
)

// Config holds MCP command configuration. The server acts as the player whose
// token the player command stored.
type Config struct {
	APIOrigin string        `env:"API_ORIGIN"        envDefault:"http://localhost:5000"`
	HTTPAddr  string        `env:"MCP_HTTP_ADDR"     envDefault:"localhost:5081"`
	Transport string        `env:"MCP_TRANSPORT"     envDefault:"stdio"`
	TokenKind string        `env:"PLAYER_TOKEN_KIND" envDefault:"local"`
	TokenDir  string        `env:"TOKEN_DIR"`
	Timeout   time.Duration `env:"HTTP_TIMEOUT"      envDefault:"10s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.APIOrigin, "api", cfg.APIOrigin, "API origin")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	fs.StringVar(&cfg.TokenDir, "token-dir", cfg.TokenDir, "directory for stored tokens")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP protocol adapter.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(ctx context.Context) error {
		session, err := playersvc.Connect(playersvc.ConnectOptions{
			Origin:    cfg.APIOrigin,
			TokenKind: tokenstore.Kind(cfg.TokenKind),
			TokenDir:  cfg.TokenDir,
			Timeout:   cfg.Timeout,
		})
		if err != nil {
			return err
		}
		if !session.SignedIn() {
			return fmt.Errorf("no stored player session: run the player login command first")
		}
		server, err := mcpservice.New(session)
		if err != nil {
			return err
		}
		return server.Run(ctx, mcpservice.Config{Transport: cfg.Transport, HTTPAddr: cfg.HTTPAddr})
	})
}
