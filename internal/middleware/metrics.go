package middleware

import (
	"context"
	"net/http"

	"github.com/bryanwahyu/bloodreport-ai/internal/metrics"
)

// QueueDepth reports pending and in-flight analysis jobs.
type QueueDepth func(ctx context.Context) (pending, processing int64, err error)

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.RequestStarted()
		wrapped := wrapWriter(w)
		defer func() { metrics.RequestFinished(wrapped.statusCode) }()

		next.ServeHTTP(wrapped, r)
	})
}

// PerformanceHandler returns metrics as JSON; depth may be nil
func PerformanceHandler(depth QueueDepth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := metrics.Snapshot()
		if depth != nil {
			if pending, processing, err := depth(r.Context()); err == nil {
				snap["queue"] = map[string]int64{"pending": pending, "processing": processing}
			}
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}
