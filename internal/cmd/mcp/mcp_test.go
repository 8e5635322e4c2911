package mcp

import (
	"context"
	"flag"
	"strings"
	"testing"
)

func TestParseConfig(t *testing.T) {
	t.Setenv("TAPESTRY_MCP_TRANSPORT", "http")
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-http-addr", "127.0.0.1:9100"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Transport != "http" || cfg.HTTPAddr != "127.0.0.1:9100" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.APIOrigin != "http://localhost:5000" {
		t.Fatalf("expected default api origin, got %q", cfg.APIOrigin)
	}
}

func TestRunRequiresStoredSession(t *testing.T) {
	err := Run(context.Background(), Config{APIOrigin: "http://localhost:1", TokenDir: t.TempDir(), Transport: "stdio"})
	if err == nil || !strings.Contains(err.Error(), "login") {
		t.Fatalf("expected missing session error, got %v", err)
	}
}
