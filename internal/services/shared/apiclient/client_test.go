package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/louisbranch/tapestry/internal/platform/dotpath"
)

type recorded struct {
	method string
	path   string
	query  string
	header http.Header
	body   string
}

func newTestClient(t *testing.T, status int, response string) (*Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*rec = recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, header: r.Header.Clone(), body: string(body)}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	client, err := New(Options{Origin: srv.URL + "///", ServiceName: "player", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, rec
}

func TestNewRequiresOrigin(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error for empty origin")
	}
}

func TestBaseURLTrimsOrigin(t *testing.T) {
	c, err := New(Options{Origin: "http://localhost:5000//"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.BaseURL() != "http://localhost:5000/api/v1" {
		t.Fatalf("unexpected base url %q", c.BaseURL())
	}
}

func TestHeadersAndToken(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"success":true,"payload":{"_id":"u1","email":"a@b.co","roles":"admin"}}`)

	if _, err := c.Me(context.Background()); err != nil {
		t.Fatalf("me: %v", err)
	}
	if rec.header.Get("Authorization") != "" {
		t.Fatalf("expected no authorization header, got %q", rec.header.Get("Authorization"))
	}
	if rec.header.Get("X-Service-Name") != "player" || !strings.HasPrefix(rec.header.Get("Content-Type"), "application/json") {
		t.Fatalf("unexpected headers %v", rec.header)
	}

	c.SetAuthToken("tok")
	profile, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if rec.header.Get("Authorization") != "Bearer tok" {
		t.Fatalf("expected bearer header, got %q", rec.header.Get("Authorization"))
	}
	if rec.path != "/api/v1/auth/me" {
		t.Fatalf("unexpected path %q", rec.path)
	}
	if !profile.HasRole("admin") {
		t.Fatalf("expected string role to normalize, got %v", profile.Roles)
	}

	c.SetAuthToken("")
	if _, err := c.Me(context.Background()); err != nil {
		t.Fatalf("me: %v", err)
	}
	if rec.header.Get("Authorization") != "" {
		t.Fatal("expected cleared token to drop the header")
	}
}

func TestLoginCarriesMessage(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"success":true,"message":"login successful","payload":{"token":"jwt","isEmailVerified":true,"profileRefs":{"player":"u1","gm":null}}}`)
	resp, err := c.Login(context.Background(), "a@b.co", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Token != "jwt" || resp.Message != "login successful" || !resp.IsEmailVerified {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.ProfileRefs["gm"] != nil || *resp.ProfileRefs["player"] != "u1" {
		t.Fatalf("unexpected profile refs %+v", resp.ProfileRefs)
	}
	if rec.method != http.MethodPost || !strings.Contains(rec.body, `"email":"a@b.co"`) {
		t.Fatalf("unexpected request %+v", rec)
	}
}

func TestUpdateCharacterSendsOrderedSet(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"success":true,"payload":{"_id":"c1","name":"Aria"}}`)
	patch := dotpath.Set("sheet.notes", "hi").Set("name", "Aria")
	sheet, err := c.UpdateCharacter(context.Background(), "c1", patch)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if rec.method != http.MethodPut || rec.path != "/api/v1/game/characters/c1" {
		t.Fatalf("unexpected request %s %s", rec.method, rec.path)
	}
	if rec.body != `{"$set":{"sheet.notes":"hi","name":"Aria"}}` {
		t.Fatalf("unexpected body %s", rec.body)
	}
	if sheet["name"] != "Aria" {
		t.Fatalf("unexpected sheet %v", sheet)
	}
}

func TestListCharactersCleansParams(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"success":true,"payload":{"items":null,"total":0,"page":1,"limit":20}}`)
	page, err := c.ListCharacters(context.Background(), ListParams{Keyword: " ar ", Status: "  ", Page: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if rec.query != "keyword=ar&page=2" {
		t.Fatalf("unexpected query %q", rec.query)
	}
	if page.Items == nil {
		t.Fatal("expected empty items slice")
	}
}

func TestCleanParams(t *testing.T) {
	got := CleanParams(map[string]string{"a": "1", "b": "", "c": "  ", "d": " x "})
	want := map[string][]string{"a": {"1"}, "d": {"x"}}
	if !reflect.DeepEqual(map[string][]string(got), want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		body       string
		validation bool
	}{
		{name: "bad request", status: http.StatusBadRequest, body: `{"success":false,"message":"name is required","code":"CHARACTER_EMPTY_NAME"}`, validation: true},
		{name: "unprocessable", status: http.StatusUnprocessableEntity, body: `{}`, validation: true},
		{name: "not found", status: http.StatusNotFound, body: `{"success":false,"message":"character not found","code":"NOT_FOUND"}`},
		{name: "server error html", status: http.StatusBadGateway, body: `<html>bad gateway</html>`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestClient(t, tc.status, tc.body)
			_, err := c.GetCharacter(context.Background(), "c1")
			if errors.Is(err, ErrValidation) != tc.validation || errors.Is(err, ErrTransport) == tc.validation {
				t.Fatalf("unexpected classification for %v", err)
			}
			if StatusOf(err) != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, StatusOf(err))
			}
		})
	}
}

func TestNetworkFailureIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	origin := srv.URL
	srv.Close()
	c, err := New(Options{Origin: origin})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = c.GetCharacter(context.Background(), "c1")
	if !errors.Is(err, ErrTransport) || errors.Is(err, ErrValidation) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if StatusOf(err) != 0 {
		t.Fatalf("expected no status, got %d", StatusOf(err))
	}
}

func TestUnsuccessfulEnvelopeIsError(t *testing.T) {
	c, _ := newTestClient(t, http.StatusOK, `{"success":false,"message":"nope"}`)
	if err := c.DeleteCharacter(context.Background(), "c1"); MessageOf(err) != "nope" {
		t.Fatalf("expected envelope message, got %v", err)
	}
}

func TestNormalizeRoles(t *testing.T) {
	cases := map[string][]string{
		`"admin"`:            {"admin"},
		`["player","admin"]`: {"player", "admin"},
		`null`:               {},
	}
	for raw, want := range cases {
		got, err := NormalizeRoles(json.RawMessage(raw))
		if err != nil {
			t.Fatalf("normalize %s: %v", raw, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("normalize %s: expected %v, got %v", raw, want, got)
		}
	}
	if _, err := NormalizeRoles(json.RawMessage(`42`)); err == nil {
		t.Fatal("expected error for numeric roles")
	}
}

func TestAdminEndpoints(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"success":true,"payload":{"_id":"u2","email":"b@c.co","roles":["admin","player"]}}`)
	profile, err := c.SetAccountRoles(context.Background(), "u2", []string{"admin", "player"})
	if err != nil {
		t.Fatalf("set roles: %v", err)
	}
	if rec.path != "/api/v1/admin/accounts/u2/roles" || rec.body != `{"roles":["admin","player"]}` {
		t.Fatalf("unexpected request %s %s", rec.path, rec.body)
	}
	if !profile.HasRole("admin") {
		t.Fatalf("unexpected profile %+v", profile)
	}
}
