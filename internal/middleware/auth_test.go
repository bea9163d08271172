package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret, subject, name string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"name": name,
		"exp":  expires.Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifyValidToken(t *testing.T) {
	verifier := NewTokenVerifier("secret")
	raw := signToken(t, "secret", "7", "alice", time.Now().Add(time.Hour))

	claims, err := verifier.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, 7, claims.ParticipantID)
	assert.Equal(t, "alice", claims.DisplayName)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	verifier := NewTokenVerifier("secret")
	raw := signToken(t, "other", "7", "alice", time.Now().Add(time.Hour))

	_, err := verifier.Verify(raw)
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	verifier := NewTokenVerifier("secret")
	raw := signToken(t, "secret", "7", "alice", time.Now().Add(-time.Minute))

	_, err := verifier.Verify(raw)
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestVerifyRejectsNonNumericSubject(t *testing.T) {
	verifier := NewTokenVerifier("secret")
	raw := signToken(t, "secret", "bogus", "alice", time.Now().Add(time.Hour))

	_, err := verifier.Verify(raw)
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestAuthMiddlewareSetsIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	verifier := NewTokenVerifier("secret")
	raw := signToken(t, "secret", "7", "alice", time.Now().Add(time.Hour))

	r := gin.New()
	r.Use(AuthMiddleware(verifier))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.GetInt("participantID"), "name": c.GetString("displayName")})
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Token "+raw)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
