package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zsleinadg/WebCarros/internal/auth"
)

const (
	// ContextKeyUserID holds the key for user ID in Gin context.
	ContextKeyUserID = "userID"
	// ContextKeyUserEmail holds the key for user email in Gin context.
	ContextKeyUserEmail = "userEmail"
	// ContextKeyUserName holds the key for user display name in Gin context.
	ContextKeyUserName = "userName"
)

// bearerToken extracts the token from an Authorization header.
// Returns an empty string when the header is missing or malformed.
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

// AuthMiddleware creates a Gin middleware for JWT authentication.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := auth.ValidateJWT(tokenString, jwtSecret)
		if err != nil {
			errMsg := fmt.Sprintf("Invalid or expired token: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errMsg})
			return
		}

		// Set user info in context for handlers to use
		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUserEmail, claims.Email)
		c.Set(ContextKeyUserName, claims.Name)

		c.Next()
	}
}

// GuestOnlyMiddleware rejects requests carrying a valid session token.
// Signup and signin are only meaningful for signed-out clients; a signed-in
// caller is pointed back at the dashboard.
func GuestOnlyMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString != "" {
			if _, err := auth.ValidateJWT(tokenString, jwtSecret); err == nil {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error":    "already signed in",
					"redirect": "/dashboard",
				})
				return
			}
		}
		c.Next()
	}
}
