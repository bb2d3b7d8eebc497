package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/hongminglow/loan-be/internal/http/respond"
	"github.com/hongminglow/loan-be/internal/metrics"
	"github.com/hongminglow/loan-be/internal/ratelimit"
)

// RateLimit throttles route per client IP and answers 429 with Retry-After.
func RateLimit(limiter ratelimit.Limiter, rec metrics.Recorder, logger *slog.Logger, route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := route + ":" + clientIP(r)
		decision := limiter.Allow(r.Context(), key)
		if !decision.Allowed {
			rec.RecordRateLimitHit(route)
			logger.Warn("rate limit exceeded", slog.String("route", route), slog.String("key", key))
			w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfterSeconds()))
			respond.Error(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		host = "unknown"
	}
	return "ip:" + host
}
