package respond

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hongminglow/loan-be/internal/apperr"
	"github.com/hongminglow/loan-be/internal/logger"
)

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusCreated, Envelope{Message: "created", Data: []string{}})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":true,"error":false,"message":"created","data":[]}`, rec.Body.String())
}

func TestFailureMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		body   string
	}{
		{apperr.Validation("Loan ID is required"), http.StatusBadRequest, "Loan ID is required"},
		{apperr.Forbidden("Access denied"), http.StatusForbidden, "Access denied"},
		{apperr.NotFound("Loan not found"), http.StatusNotFound, "Loan not found"},
		{apperr.Conflict("User already exists."), http.StatusConflict, "User already exists."},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		Failure(rec, httptest.NewRequest(http.MethodGet, "/", nil), logger.Discard(), tc.err)
		assert.Equal(t, tc.status, rec.Code)
		assert.JSONEq(t, `{"success":false,"error":true,"message":"`+tc.body+`"}`, rec.Body.String())
	}
}

func TestFailureLogsInternalCause(t *testing.T) {
	var buf bytes.Buffer
	rec := httptest.NewRecorder()
	Failure(rec, httptest.NewRequest(http.MethodPost, "/loan/createloan", nil), logger.New(&buf, "info"), errors.New("disk full"))

	assert.Contains(t, buf.String(), "disk full")
	assert.NotContains(t, rec.Body.String(), "disk full")
}
