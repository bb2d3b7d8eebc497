package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hongminglow/loan-be/internal/authz"
	"github.com/hongminglow/loan-be/internal/http/respond"
)

// TokenParser verifies a bearer token and returns the caller id.
type TokenParser interface {
	Parse(token string) (string, error)
}

// CapabilityResolver classifies a caller id.
type CapabilityResolver interface {
	Resolve(ctx context.Context, callerID string) (authz.Capabilities, error)
}

var errBearerMissing = errors.New("authorization header missing or not bearer")

// RequireAuth rejects requests without a valid bearer token and stores the
// caller id in the request context.
func RequireAuth(tokens TokenParser, log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r.Header.Get("Authorization"))
		if err != nil {
			respond.Error(w, http.StatusUnauthorized, "Authorization token missing or invalid")
			return
		}
		userID, err := tokens.Parse(token)
		if err != nil {
			log.Debug("token rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
			respond.Error(w, http.StatusForbidden, "Invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// RequireCapabilities loads the caller's role on every request. It must run
// inside RequireAuth.
func RequireCapabilities(gate CapabilityResolver, log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserIDFromContext(r.Context())
		caps, err := gate.Resolve(r.Context(), userID)
		if err != nil {
			respond.Failure(w, r, log, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCapabilities(r.Context(), caps)))
	})
}

func bearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || scheme != "Bearer" {
		return "", errBearerMissing
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errBearerMissing
	}
	return token, nil
}
