package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveHTTPCountsRequests(t *testing.T) {
	r := NewRegistry()
	r.ObserveHTTP(http.MethodGet, "/api/v1/game/characters", http.StatusOK, "player", 10*time.Millisecond)
	r.ObserveHTTP(http.MethodGet, "/api/v1/game/characters", http.StatusOK, "player", 20*time.Millisecond)

	got := testutil.ToFloat64(r.httpRequests.WithLabelValues(http.MethodGet, "/api/v1/game/characters", "200", "player"))
	if got != 2 {
		t.Fatalf("expected 2 requests, got %v", got)
	}
}

func TestObserveMutationByOutcome(t *testing.T) {
	r := NewRegistry()
	r.ObserveMutation(OutcomeSucceeded, time.Millisecond)
	r.ObserveMutation(OutcomeFailed, time.Millisecond)
	r.ObserveMutation(OutcomeFailed, time.Millisecond)

	if got := testutil.ToFloat64(r.mutations.WithLabelValues(OutcomeFailed)); got != 2 {
		t.Fatalf("expected 2 failed mutations, got %v", got)
	}
}

func TestNilRegistryIsSafe(t *testing.T) {
	var r *Registry
	r.ObserveHTTP(http.MethodGet, "/", 200, "", time.Millisecond)
	r.ObserveMutation(OutcomeSucceeded, time.Millisecond)
}

func TestHandlerExposesCollectors(t *testing.T) {
	r := NewRegistry()
	r.ObserveMutation(OutcomeSucceeded, time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "tapestry_sheet_mutations_total") {
		t.Fatalf("expected mutation counter in exposition, got %s", body)
	}
}
