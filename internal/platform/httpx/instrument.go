package httpx

import (
	"net/http"
	"time"

	"github.com/louisbranch/tapestry/internal/platform/requestctx"
	"github.com/louisbranch/tapestry/internal/platform/telemetry/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Instrument records request counts and latency by mux route pattern.
func Instrument(registry *metrics.Registry) Middleware {
	return func(next http.Handler) http.Handler {
		if registry == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			registry.ObserveHTTP(r.Method, route, status, requestctx.ServiceNameFromContext(r.Context()), time.Since(start))
		})
	}
}
