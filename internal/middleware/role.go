package middleware

import (
	"marketplace/internal/domain" // Importing domain models
	"net/http"                    // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// activeUser loads the authenticated user and aborts unless it exists and is active
func activeUser(c *gin.Context, db *gorm.DB) (*domain.User, bool) {
	userID, exists := UserID(c) // Get userID from context
	if !exists {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil, false
	}
	var user domain.User // Fetch user from database
	if err := db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil || !user.IsActive {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return nil, false
	}
	return &user, true
}

// RequireActive rejects users deactivated after their token was issued
func RequireActive(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := activeUser(c, db)
		if !ok {
			return
		}
		c.Set(CtxRole, user.Role)
		c.Next()
	}
}

// RequireRole checks the user's role and active flag from the database on each request,
// so role changes and deactivations apply before the token expires
func RequireRole(db *gorm.DB, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := activeUser(c, db)
		if !ok {
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Set(CtxRole, user.Role)
				c.Next() // Role allowed, proceed to the next handler
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied for role " + user.Role})
	}
}
