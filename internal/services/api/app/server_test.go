package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	platformgrpc "github.com/louisbranch/tapestry/internal/platform/grpc"
	"github.com/louisbranch/tapestry/internal/platform/httpx"
	"github.com/louisbranch/tapestry/internal/platform/telemetry/metrics"
	authsqlite "github.com/louisbranch/tapestry/internal/services/auth/storage/sqlite"
	"github.com/louisbranch/tapestry/internal/services/auth/token"
	gamesqlite "github.com/louisbranch/tapestry/internal/services/game/storage/sqlite"
)

const testSecret = "integration-secret-0123456789"

func newTestHandler(t *testing.T) (http.Handler, *metrics.Registry) {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	authStore, err := authsqlite.Open(ctx, filepath.Join(dir, "auth.db"))
	if err != nil {
		t.Fatalf("open auth store: %v", err)
	}
	t.Cleanup(func() { _ = authStore.Close() })
	gameStore, err := gamesqlite.Open(ctx, filepath.Join(dir, "game.db"))
	if err != nil {
		t.Fatalf("open game store: %v", err)
	}
	t.Cleanup(func() { _ = gameStore.Close() })
	issuer, err := token.NewIssuer(token.Config{Secret: []byte(testSecret)})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	registry := metrics.NewRegistry()
	handler, err := NewHandler(Deps{
		Accounts:    authStore,
		Characters:  gameStore,
		Tokens:      issuer,
		Metrics:     registry,
		AdminEmails: []string{"root@example.com"},
	})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler, registry
}

func call(t *testing.T, h http.Handler, method, path, bearer, body string) (int, httpx.Envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(httpx.ServiceNameHeader, "player")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get(httpx.RequestIDHeader) == "" {
		t.Fatalf("expected request id header on %s %s", method, path)
	}
	var env httpx.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope %q: %v", rec.Body.String(), err)
	}
	return rec.Code, env
}

func TestRegisterCreateAndPatchFlow(t *testing.T) {
	h, _ := newTestHandler(t)

	code, env := call(t, h, http.MethodPost, "/api/v1/auth/register", "", `{"email":"aria@example.com","password":"password123"}`)
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %+v", code, env)
	}
	var session struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Payload, &session); err != nil || session.Token == "" {
		t.Fatalf("expected token, got %s (%v)", env.Payload, err)
	}

	code, env = call(t, h, http.MethodPost, "/api/v1/game/characters", session.Token, `{"name":"Aria"}`)
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %+v", code, env)
	}
	var sheet struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(env.Payload, &sheet); err != nil {
		t.Fatalf("decode sheet: %v", err)
	}

	code, env = call(t, h, http.MethodPut, "/api/v1/game/characters/"+sheet.ID, session.Token, `{"$set":{"sheet.resources.hp.current":7}}`)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d %+v", code, env)
	}
	if !strings.Contains(string(env.Payload), `"current":7`) {
		t.Fatalf("expected patched hp in payload, got %s", env.Payload)
	}

	code, _ = call(t, h, http.MethodGet, "/api/v1/game/characters", "", "")
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	code, env = call(t, h, http.MethodGet, "/api/v1/admin/accounts", session.Token, "")
	if code != http.StatusForbidden {
		t.Fatalf("expected 403 for player, got %d %+v", code, env)
	}
}

func TestAdminDeleteRemovesSheets(t *testing.T) {
	h, _ := newTestHandler(t)
	register := func(email string) string {
		_, env := call(t, h, http.MethodPost, "/api/v1/auth/register", "", `{"email":"`+email+`","password":"password123"}`)
		var session struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(env.Payload, &session); err != nil {
			t.Fatalf("decode session: %v", err)
		}
		return session.Token
	}
	admin := register("root@example.com")
	player := register("aria@example.com")
	call(t, h, http.MethodPost, "/api/v1/game/characters", player, `{"name":"Aria"}`)

	_, env := call(t, h, http.MethodGet, "/api/v1/auth/me", player, "")
	var me struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(env.Payload, &me); err != nil {
		t.Fatalf("decode profile: %v", err)
	}

	code, env := call(t, h, http.MethodDelete, "/api/v1/admin/accounts/"+me.ID, admin, "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d %+v", code, env)
	}
	_, env = call(t, h, http.MethodGet, "/api/v1/game/characters", admin, "")
	if !strings.Contains(string(env.Payload), `"total":0`) {
		t.Fatalf("expected no sheets after account delete, got %s", env.Payload)
	}
}

func TestUnknownRouteAndMetrics(t *testing.T) {
	h, _ := newTestHandler(t)
	code, env := call(t, h, http.MethodGet, "/api/v1/nope", "", "")
	if code != http.StatusNotFound || env.Code != "NOT_FOUND" {
		t.Fatalf("expected enveloped 404, got %d %+v", code, env)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "tapestry_http_requests_total") {
		t.Fatalf("expected request counter in exposition, got %s", body)
	}
}

func TestServeReportsHealthAndStops(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := New(ctx, Config{
		HTTPAddr:   "127.0.0.1:0",
		HealthAddr: "127.0.0.1:0",
		AuthDBPath: filepath.Join(dir, "auth.db"),
		GameDBPath: filepath.Join(dir, "game.db"),
		JWTSecret:  testSecret,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	for _, component := range []string{"", ComponentAuth, ComponentGame} {
		if err := platformgrpc.Probe(ctx, srv.HealthAddr(), component, 5*time.Second, t.Logf); err != nil {
			t.Fatalf("probe %q: %v", component, err)
		}
	}

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNewRejectsShortSecret(t *testing.T) {
	dir := t.TempDir()
	_, err := New(context.Background(), Config{
		HTTPAddr:   "127.0.0.1:0",
		AuthDBPath: filepath.Join(dir, "auth.db"),
		GameDBPath: filepath.Join(dir, "game.db"),
		JWTSecret:  "short",
	})
	if err == nil {
		t.Fatal("expected error for short secret")
	}
}
