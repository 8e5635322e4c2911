package admin

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"path/filepath"
	"strings"
	"testing"
	"time"

	adminsvc "github.com/louisbranch/tapestry/internal/services/admin"
	server "github.com/louisbranch/tapestry/internal/services/api/app"
	"github.com/louisbranch/tapestry/internal/services/shared/apiclient"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("admin", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"accounts"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HealthAddr != "localhost:5001" || cfg.ProbeTimeout != 5*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Command != "accounts" || len(cfg.Args) != 0 {
		t.Fatalf("unexpected command %q %v", cfg.Command, cfg.Args)
	}
	if _, err := ParseConfig(flag.NewFlagSet("admin", flag.ContinueOnError), nil); err == nil {
		t.Fatal("expected missing subcommand error")
	}
}

func startServer(t *testing.T) *server.Server {
	t.Helper()
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	srv, err := server.New(ctx, server.Config{
		HTTPAddr:    "127.0.0.1:0",
		HealthAddr:  "127.0.0.1:0",
		AuthDBPath:  filepath.Join(dir, "auth.db"),
		GameDBPath:  filepath.Join(dir, "game.db"),
		JWTSecret:   "admin-cli-secret-0123456789",
		AdminEmails: []string{"root@example.com"},
	})
	if err != nil {
		cancel()
		t.Fatalf("new server: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Error("server did not stop")
		}
	})
	return srv
}

func registerPlayer(t *testing.T, origin, email string) string {
	t.Helper()
	ctx := context.Background()
	client, err := apiclient.New(apiclient.Options{Origin: origin, ServiceName: "player"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	resp, err := client.Register(ctx, apiclient.RegisterInput{Email: email, Password: "password123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	client.SetAuthToken(resp.Token)
	if _, err := client.CreateCharacter(ctx, apiclient.CreateCharacterInput{Name: "Aria"}); err != nil {
		t.Fatalf("create character: %v", err)
	}
	profile, err := client.Me(ctx)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	return profile.ID
}

func TestExecuteAdminFlow(t *testing.T) {
	srv := startServer(t)
	origin := "http://" + srv.Addr()
	registerPlayer(t, origin, "root@example.com")
	playerID := registerPlayer(t, origin, "aria@example.com")

	session, err := adminsvc.Connect(adminsvc.ConnectOptions{Origin: origin, TokenDir: t.TempDir()})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	cfg := Config{HealthAddr: srv.HealthAddr(), ProbeTimeout: 5 * time.Second}
	run := func(stdin, command string, args ...string) string {
		t.Helper()
		cfg.Command, cfg.Args = command, args
		var out bytes.Buffer
		if err := Execute(context.Background(), session, cfg, strings.NewReader(stdin), &out); err != nil {
			t.Fatalf("%s %v: %v", command, args, err)
		}
		return out.String()
	}

	run("password123\n", "login", "-email", "root@example.com")
	if got := run("", "accounts"); !strings.Contains(got, "aria@example.com") || !strings.Contains(got, "admin,player") {
		t.Fatalf("unexpected accounts output %q", got)
	}
	if got := run("", "characters"); !strings.Contains(got, "2 of 2") {
		t.Fatalf("unexpected characters output %q", got)
	}
	if got := run("", "roles", playerID, "player,admin"); !strings.Contains(got, "roles=admin,player") {
		t.Fatalf("unexpected roles output %q", got)
	}
	run("", "delete-account", playerID, "-yes")
	if got := run("", "characters"); !strings.Contains(got, "1 of 1") {
		t.Fatalf("expected one sheet left, got %q", got)
	}
	if got := run("", "health"); strings.Count(got, "SERVING") != 3 {
		t.Fatalf("unexpected health output %q", got)
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	session, err := adminsvc.Connect(adminsvc.ConnectOptions{Origin: "http://localhost:1", TokenDir: t.TempDir()})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	err = Execute(context.Background(), session, Config{Command: "promote"}, strings.NewReader(""), &bytes.Buffer{})
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}
