package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/loan-be/internal/models"
)

func TestGenerateAndParse(t *testing.T) {
	tm := NewTokenManager("secret", "loan-backend", time.Hour)
	token, err := tm.Generate(models.User{ID: "user-1", Email: "a@example.com"})
	require.NoError(t, err)

	userID, err := tm.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenManager("one", "loan-backend", time.Hour).Generate(models.User{ID: "user-1"})
	require.NoError(t, err)

	_, err = NewTokenManager("two", "loan-backend", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpired(t *testing.T) {
	tm := NewTokenManager("secret", "loan-backend", time.Minute)
	issued := time.Now().Add(-time.Hour)
	tm.now = func() time.Time { return issued }
	token, err := tm.Generate(models.User{ID: "user-1"})
	require.NoError(t, err)

	tm.now = time.Now
	_, err = tm.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsForeignIssuerAndAlgorithm(t *testing.T) {
	tm := NewTokenManager("secret", "loan-backend", time.Hour)

	foreign, err := NewTokenManager("secret", "someone-else", time.Hour).Generate(models.User{ID: "user-1"})
	require.NoError(t, err)
	_, err = tm.Parse(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:  "loan-backend",
		Subject: "user-1",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tm.Parse(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsMissingSubject(t *testing.T) {
	tm := NewTokenManager("secret", "loan-backend", time.Hour)
	token, err := tm.Generate(models.User{})
	require.NoError(t, err)
	_, err = tm.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
