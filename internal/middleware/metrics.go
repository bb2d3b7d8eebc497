package middleware

import (
	"net/http"
	"time"

	"github.com/hongminglow/loan-be/internal/metrics"
)

// Metrics records status and latency per route. route maps a request to a
// bounded label, normally the matched mux pattern.
func Metrics(rec metrics.Recorder, route func(*http.Request) string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(sr, r)
		rec.RecordRequest(route(r), sr.statusCode, time.Since(start))
	})
}
