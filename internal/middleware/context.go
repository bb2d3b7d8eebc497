package middleware

import (
	"context"
	"errors"

	"github.com/hongminglow/loan-be/internal/authz"
)

type contextKey string

const (
	userIDKey       contextKey = "loan-user-id"
	capabilitiesKey contextKey = "loan-capabilities"
	requestInfoKey  contextKey = "loan-request-info"
)

// ErrNoUser is returned when no authenticated caller is attached to the context.
var ErrNoUser = errors.New("no authenticated user in context")

// requestInfo is filled in by inner middleware and read by Logging after the
// handler returns.
type requestInfo struct {
	userID string
}

// WithUserID attaches the authenticated caller id.
func WithUserID(ctx context.Context, userID string) context.Context {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		info.userID = userID
	}
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the caller id set by RequireAuth.
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok || userID == "" {
		return "", ErrNoUser
	}
	return userID, nil
}

// WithCapabilities attaches resolved role capabilities.
func WithCapabilities(ctx context.Context, caps authz.Capabilities) context.Context {
	return context.WithValue(ctx, capabilitiesKey, caps)
}

// CapabilitiesFromContext returns what RequireCapabilities resolved. The zero
// value grants nothing.
func CapabilitiesFromContext(ctx context.Context) authz.Capabilities {
	caps, _ := ctx.Value(capabilitiesKey).(authz.Capabilities)
	return caps
}
