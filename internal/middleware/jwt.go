package middleware

import (
	"marketplace/internal/utils" // JWT utility functions
	"net/http"                   // HTTP status codes
	"strings"                    // String manipulation

	"github.com/gin-gonic/gin" // Gin web framework
)

// Context keys set by JWTAuthMiddleware
const (
	CtxUserID = "userID"
	CtxRole   = "role"
)

// JWTAuthMiddleware validates access tokens and extracts user information
func JWTAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization") // Get Authorization header
		// Check if the Authorization header is present and properly formatted
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")              // Extract the token string
		claims, err := utils.ParseJWT(tokenStr, secret, utils.TokenAccess) // Parse the JWT token
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		c.Set(CtxUserID, claims.UserID) // Store userID in context
		c.Set(CtxRole, claims.Role)     // Store role in context
		c.Next()                        // Proceed to the next handler
	}
}

// UserID returns the authenticated user id set by JWTAuthMiddleware
func UserID(c *gin.Context) (uint, bool) {
	v, exists := c.Get(CtxUserID)
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
