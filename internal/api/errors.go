package api

import (
	"errors"                          // Error matching
	"marketplace/internal/domain"     // Sentinel errors
	"marketplace/internal/middleware" // Authenticated user lookup
	"net/http"                        // HTTP status codes
	"strconv"                         // String conversion

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// statusFor maps a domain error to an HTTP status code
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInvalidOperation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a JSON error body. Unexpected errors are logged and
// reported with a generic message.
func respondError(c *gin.Context, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err) // Attach to the request for the access log
		logrus.WithFields(logrus.Fields{
			"request_id": c.GetString("requestID"), // Request ID
			"path":       c.FullPath(),             // Route template
			"error":      err.Error(),              // Error message
		}).Error(msg) // Log failure
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// paramID parses a positive numeric path parameter, answering 400 when it is not one
func paramID(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(v), true
}

// currentUserID returns the authenticated user or answers 401
func currentUserID(c *gin.Context) (uint, bool) {
	userID, exists := middleware.UserID(c) // Get userID from context
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, false
	}
	return userID, true
}
