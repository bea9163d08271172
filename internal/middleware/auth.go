package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

var ErrNotAuthenticated = errors.New("not authenticated")

// Claims is the identity carried by a platform access token.
type Claims struct {
	ParticipantID int
	DisplayName   string
}

type tokenClaims struct {
	DisplayName string `json:"name"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HS256 bearer tokens issued by the platform's
// auth service.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier constructs a TokenVerifier.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify parses and validates a raw token and returns its claims.
func (v *TokenVerifier) Verify(token string) (Claims, error) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return Claims{}, ErrNotAuthenticated
	}

	participantID, err := strconv.Atoi(claims.Subject)
	if err != nil || participantID <= 0 {
		return Claims{}, ErrNotAuthenticated
	}

	return Claims{ParticipantID: participantID, DisplayName: claims.DisplayName}, nil
}

// AuthMiddleware validates the Authorization header and stores the caller
// identity in the request context.
func AuthMiddleware(verifier *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		claims, err := verifier.Verify(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("participantID", claims.ParticipantID)
		c.Set("displayName", claims.DisplayName)
		c.Next()
	}
}
