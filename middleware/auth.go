package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"finwise/api/logger"
	"finwise/api/models"
)

// UserKey is the gin context key holding the verified Supabase claims.
const UserKey = "user"

// Auth returns middleware that verifies Supabase-issued JWTs. The signing
// secret and expected issuer are injected at construction time.
func Auth(jwtSecret, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c.Request)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid token"})
			c.Abort()
			return
		}

		claims := &models.SupabaseClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil {
			logger.Get().Warn("error parsing claims", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		if !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		if claims.Issuer != issuer {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token issuer"})
			c.Abort()
			return
		}

		c.Set(UserKey, claims)
		c.Next()
	}
}

// ClaimsFrom extracts the verified claims set by Auth. The bool is false when
// the request was not authenticated.
func ClaimsFrom(c *gin.Context) (*models.SupabaseClaims, bool) {
	user, exists := c.Get(UserKey)
	if !exists {
		return nil, false
	}
	claims, ok := user.(*models.SupabaseClaims)
	return claims, ok
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}

	return parts[1]
}
