package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by the auth middlewares
const (
	UserIDKey = "user_id"
)

// UserTokenCookie is the cookie checked when no Authorization header is sent
const UserTokenCookie = "user_token"

// JWTSecret should be loaded from environment via config
var JWTSecret string

// SetJWTSecret initializes the JWT secret from config
func SetJWTSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("JWT_SECRET cannot be empty")
	}
	if len(secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}
	JWTSecret = secret
	return nil
}

// UserClaims carries the platform user id in the standard sub claim
type UserClaims struct {
	jwt.RegisteredClaims
}

// GenerateUserToken creates a JWT token for a user.
// Sessions are issued by the account service; this is used by tests and tooling.
func GenerateUserToken(userID string, ttl time.Duration) (string, error) {
	if JWTSecret == "" {
		return "", fmt.Errorf("JWT secret not initialized")
	}

	now := time.Now()
	claims := UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(JWTSecret))
}

// ValidateUserToken parses and validates a JWT token
// Uses the global JWTSecret initialized at startup
func ValidateUserToken(tokenString string) (*UserClaims, error) {
	if JWTSecret == "" {
		return nil, fmt.Errorf("JWT secret not initialized")
	}

	claims := &UserClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	return claims, nil
}

// bearerToken extracts the token from "Authorization: Bearer <token>"
func bearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// UserAuthMiddleware validates user JWT token from Authorization header or cookie
func UserAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			cookie, err := c.Cookie(UserTokenCookie)
			if err != nil || cookie == "" {
				c.JSON(http.StatusUnauthorized, gin.H{
					"error": "missing or invalid token",
				})
				c.Abort()
				return
			}
			tokenString = cookie
		}

		claims, err := ValidateUserToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			c.Abort()
			return
		}

		// Store in context
		c.Set(UserIDKey, claims.Subject)
		c.Next()
	}
}

// GetUserID returns the authenticated user id, or "" outside UserAuthMiddleware
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// InternalTokenMiddleware guards service-to-service endpoints with a shared
// bearer token. An empty token disables the endpoints (404).
func InternalTokenMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			c.Abort()
			return
		}

		got := bearerToken(c)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid internal token"})
			c.Abort()
			return
		}

		c.Next()
	}
}
