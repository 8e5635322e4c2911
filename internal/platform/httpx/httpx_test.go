package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/louisbranch/tapestry/internal/platform/errors"
	"github.com/louisbranch/tapestry/internal/platform/requestctx"
	"github.com/louisbranch/tapestry/internal/platform/telemetry/metrics"
)

func TestChainAppliesMiddlewareInOrder(t *testing.T) {
	t.Parallel()

	called := ""
	mw := func(tag string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called += tag
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called += "h"
		w.WriteHeader(http.StatusNoContent)
	}), mw("1"), nil, mw("2"))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if called != "12h" {
		t.Fatalf("call order = %q, want %q", called, "12h")
	}
}

func TestRequestIDAddsHeaderWhenMissing(t *testing.T) {
	t.Parallel()

	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(RequestIDHeader)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.HasPrefix(seen, "api-") {
		t.Fatalf("expected generated request id, got %q", seen)
	}
	if rr.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("expected echoed request id %q, got %q", seen, rr.Header().Get(RequestIDHeader))
	}
}

func TestRequestIDPreservesIncoming(t *testing.T) {
	t.Parallel()

	h := RequestID()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get(RequestIDHeader); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
}

func TestServiceNameStoresHeaderInContext(t *testing.T) {
	t.Parallel()

	var got string
	h := ServiceName()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = requestctx.ServiceNameFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ServiceNameHeader, "player")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "player" {
		t.Fatalf("expected player, got %q", got)
	}
}

func TestRecoverPanicWritesEnvelope(t *testing.T) {
	t.Parallel()

	h := RecoverPanic()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	var env Envelope
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Success || env.Message != "internal error" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestWriteOKWrapsPayload(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	WriteOK(rr, http.StatusCreated, map[string]string{"name": "Aria"}, "created")
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rr.Code)
	}
	var env Envelope
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success || env.Message != "created" || string(env.Payload) != `{"name":"Aria"}` {
		t.Fatalf("unexpected envelope: %+v payload=%s", env, env.Payload)
	}
}

func TestWriteErrorMapsDomainCode(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	WriteError(rr, apperrors.New(apperrors.CodeNotFound, "character not found"))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	var env Envelope
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Code != string(apperrors.CodeNotFound) || env.Message != "character not found" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestWriteErrorMasksInternal(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	WriteError(rr, errors.New("disk on fire"))
	if strings.Contains(rr.Body.String(), "disk") {
		t.Fatalf("expected internal detail to be masked, got %s", rr.Body.String())
	}
}

func TestDecodeJSONRejectsEmptyAndMalformed(t *testing.T) {
	t.Parallel()

	var dst map[string]any
	empty := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	if err := DecodeJSON(empty, &dst); apperrors.CodeOf(err) != apperrors.CodeInvalidRequest {
		t.Fatalf("expected invalid request for empty body, got %v", err)
	}
	bad := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	if err := DecodeJSON(bad, &dst); apperrors.CodeOf(err) != apperrors.CodeInvalidRequest {
		t.Fatalf("expected invalid request for malformed body, got %v", err)
	}
	ok := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`))
	if err := DecodeJSON(ok, &dst); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestRateLimitRejectsAfterBurst(t *testing.T) {
	t.Parallel()

	h := RateLimit(NewKeyedLimiter(1, 2))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusNoContent || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}

	other := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	other.RemoteAddr = "10.0.0.2:5555"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, other)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected separate bucket for other client, got %d", rr.Code)
	}
}

func TestClientKeyPrefersForwardedFor(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	if got := ClientKey(req); got != "1.2.3.4" {
		t.Fatalf("expected 1.2.3.4, got %q", got)
	}
}

func TestInstrumentRecordsRoutePattern(t *testing.T) {
	t.Parallel()

	registry := metrics.NewRegistry()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	h := Instrument(registry)(mux)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/1", nil))

	families, err := registry.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, family := range families {
		if family.GetName() != "tapestry_http_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "status" && label.GetValue() == "202" {
					found = true
				}
			}
		}
	}
	if !found {
		t.Fatal("expected request counter with status 202")
	}
}
