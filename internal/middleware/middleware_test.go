package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/loan-be/internal/apperr"
	"github.com/hongminglow/loan-be/internal/authz"
	"github.com/hongminglow/loan-be/internal/logger"
	"github.com/hongminglow/loan-be/internal/models"
	"github.com/hongminglow/loan-be/internal/ratelimit"
)

type stubTokens map[string]string

func (s stubTokens) Parse(token string) (string, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return "", errors.New("bad token")
}

type stubGate map[string]models.Role

func (s stubGate) Resolve(_ context.Context, id string) (authz.Capabilities, error) {
	if id == "" {
		return authz.Capabilities{}, apperr.Unauthorized("User ID is missing from request")
	}
	role, ok := s[id]
	if !ok {
		return authz.Capabilities{}, apperr.NotFound("User not found")
	}
	return authz.For(models.User{ID: id, Role: role}), nil
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Error   bool   `json:"error"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.True(t, body.Error)
	return body.Message
}

func TestRequireAuth(t *testing.T) {
	var seen string
	h := RequireAuth(stubTokens{"good": "u-1"}, logger.Discard(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		header  string
		status  int
		message string
	}{
		{"", http.StatusUnauthorized, "Authorization token missing or invalid"},
		{"Basic Zm9vOmJhcg==", http.StatusUnauthorized, "Authorization token missing or invalid"},
		{"Bearer ", http.StatusUnauthorized, "Authorization token missing or invalid"},
		{"Bearer forged", http.StatusForbidden, "Invalid or expired token"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/user/userdetails", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, tc.status, rec.Code, tc.header)
		assert.Equal(t, tc.message, decodeMessage(t, rec))
	}

	req := httptest.NewRequest(http.MethodGet, "/user/userdetails", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u-1", seen)
}

func TestRequireCapabilities(t *testing.T) {
	gate := stubGate{"admin": models.RoleAdmin}
	var caps authz.Capabilities
	h := RequireCapabilities(gate, logger.Discard(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caps = CapabilitiesFromContext(r.Context())
	}))

	serve := func(userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/loan/getallusers", nil)
		if userID != "" {
			req = req.WithContext(WithUserID(req.Context(), userID))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := serve("admin")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, caps.IsAdmin)
	assert.False(t, caps.IsVerifier)

	rec = serve("ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", decodeMessage(t, rec))

	rec = serve("")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCapabilitiesDefaultToNone(t *testing.T) {
	caps := CapabilitiesFromContext(context.Background())
	assert.False(t, caps.IsAdmin)
	assert.False(t, caps.IsVerifier)
	_, err := UserIDFromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoUser)
}

func TestLoggingIncludesUserAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, "info")
	h := Logging(log, RequireAuth(stubTokens{"good": "u-7"}, log, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})))

	req := httptest.NewRequest(http.MethodGet, "/loan/getmyloan", nil)
	req.Header.Set("Authorization", "Bearer good")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http_request", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "u-7", entry["user_id"])
	assert.Equal(t, float64(http.StatusNotFound), entry["status"])
	assert.Equal(t, "/loan/getmyloan", entry["path"])
}

func TestRecovery(t *testing.T) {
	h := Recovery(logger.Discard(), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", decodeMessage(t, rec))
}

type countingRecorder struct {
	routes []string
	codes  []int
	hits   []string
}

func (c *countingRecorder) RecordRequest(route string, status int, _ time.Duration) {
	c.routes = append(c.routes, route)
	c.codes = append(c.codes, status)
}
func (c *countingRecorder) RecordTransition(models.Stage) {}
func (c *countingRecorder) RecordRateLimitHit(route string) {
	c.hits = append(c.hits, route)
}

func TestMetrics(t *testing.T) {
	rec := &countingRecorder{}
	h := Metrics(rec, func(*http.Request) string { return "/loan/createloan" }, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/loan/createloan", nil))
	assert.Equal(t, []string{"/loan/createloan"}, rec.routes)
	assert.Equal(t, []int{http.StatusCreated}, rec.codes)
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.NewMemory(2)
	defer limiter.Close()
	rec := &countingRecorder{}
	h := RateLimit(limiter, rec, logger.Discard(), "/user/signin", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/user/signin", nil)
		req.RemoteAddr = addr
		out := httptest.NewRecorder()
		h.ServeHTTP(out, req)
		return out
	}
	assert.Equal(t, http.StatusOK, serve("10.0.0.1:5000").Code)
	assert.Equal(t, http.StatusOK, serve("10.0.0.1:5001").Code)
	blocked := serve("10.0.0.1:5002")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "30", blocked.Header().Get("Retry-After"))
	assert.Equal(t, "Too many requests. Please try again later.", decodeMessage(t, blocked))
	assert.Equal(t, []string{"/user/signin"}, rec.hits)

	assert.Equal(t, http.StatusOK, serve("10.0.0.2:5000").Code)
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	listed := CORS([]string{"http://localhost:5173/"}, next)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	listed.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	listed.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	wildcard := CORS([]string{"*"}, next)
	req = httptest.NewRequest(http.MethodOptions, "/loan/createloan", nil)
	req.Header.Set("Origin", "https://any.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	wildcard.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}
