package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/hongminglow/loan-be/internal/http/respond"
)

// Guards wraps routes with the middleware they need. Nil fields pass through.
type Guards struct {
	// Authenticated requires a valid bearer token.
	Authenticated func(http.Handler) http.Handler
	// Privileged requires a token and resolves role capabilities.
	Privileged func(http.Handler) http.Handler
	// Throttled rate-limits an unauthenticated route.
	Throttled func(route string, next http.Handler) http.Handler
}

func (g Guards) authenticated(h http.HandlerFunc) http.Handler {
	if g.Authenticated == nil {
		return h
	}
	return g.Authenticated(h)
}

func (g Guards) privileged(h http.HandlerFunc) http.Handler {
	if g.Privileged == nil {
		return h
	}
	return g.Privileged(h)
}

func (g Guards) throttled(route string, h http.HandlerFunc) http.Handler {
	if g.Throttled == nil {
		return h
	}
	return g.Throttled(route, h)
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return false
	}
	return true
}
