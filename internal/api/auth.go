package api

import (
	"errors"                      // Error matching
	"marketplace/internal/domain" // Importing domain models
	"marketplace/internal/utils"  // Utility functions
	"net/http"                    // HTTP status codes
	"strings"                     // String manipulation
	"time"                        // Token lifetimes

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"golang.org/x/crypto/bcrypt" // Password hashing
	"gorm.io/gorm"               // GORM ORM library
)

// RegisterRequest is the registration payload
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=150"`   // Display name
	Email    string `json:"email" binding:"required,email"`    // Login identifier
	Phone    string `json:"phone" binding:"max=30"`            // Contact phone
	UserType string `json:"usertype" binding:"required"`       // consumer or company
	Password string `json:"password" binding:"required,min=8"` // Plain text password, at least 8 characters
}

// LoginRequest is the login payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`    // Email must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// RefreshRequest carries a refresh token
type RefreshRequest struct {
	Refresh string `json:"refresh" binding:"required"` // Refresh token
}

// RegisterHandler creates a consumer or company user
func RegisterHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
		role := strings.ToLower(strings.TrimSpace(req.UserType))
		if !domain.ValidRole(role) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "usertype must be consumer or company"})
			return
		}
		email := strings.ToLower(strings.TrimSpace(req.Email)) // Emails are unique case-insensitively
		var count int64
		if err := db.Model(&domain.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			respondError(c, err, "Failed to register user")
			return
		}
		if count > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		// Hash the password and create the user
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			respondError(c, err, "Failed to hash password")
			return
		}
		user := domain.User{
			Name:     strings.TrimSpace(req.Name),
			Email:    email,
			Phone:    strings.TrimSpace(req.Phone),
			Password: string(hash),
			Role:     role,
			IsActive: true,
		}
		if err := db.Create(&user).Error; err != nil {
			respondError(c, err, "Failed to register user")
			return
		}
		logrus.WithFields(logrus.Fields{
			"user_id": user.ID,   // User ID
			"role":    user.Role, // User role
		}).Info("User registered")
		c.JSON(http.StatusCreated, gin.H{"user": user})
	}
}

// LoginHandler authenticates a user and returns an access and a refresh token
func LoginHandler(db *gorm.DB, jwtSecret string, accessTTL, refreshTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		var user domain.User // Fetch user from database
		err := db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		} else if err != nil {
			respondError(c, err, "Failed to log in")
			return
		}
		// Compare provided password with stored hash
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		if !user.IsActive {
			c.JSON(http.StatusForbidden, gin.H{"error": "Account is inactive"})
			return
		}
		pair, err := utils.GenerateTokenPair(user.ID, user.Role, jwtSecret, accessTTL, refreshTTL)
		if err != nil {
			respondError(c, err, "Failed to generate token")
			return
		}
		c.JSON(http.StatusOK, pair)
	}
}

// RefreshHandler exchanges a refresh token for a new access token
func RefreshHandler(db *gorm.DB, jwtSecret string, accessTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		claims, err := utils.ParseJWT(req.Refresh, jwtSecret, utils.TokenRefresh)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		// Reissue with the current role so role changes are picked up
		var user domain.User
		if err := db.First(&user, claims.UserID).Error; err != nil || !user.IsActive {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		access, err := utils.GenerateJWT(user.ID, user.Role, utils.TokenAccess, jwtSecret, accessTTL)
		if err != nil {
			respondError(c, err, "Failed to generate token")
			return
		}
		c.JSON(http.StatusOK, gin.H{"access": access})
	}
}

// MeHandler returns the authenticated user with its company, if any
func MeHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		var user domain.User
		if err := db.Preload("Company").First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
				return
			}
			respondError(c, err, "Failed to fetch user")
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}
