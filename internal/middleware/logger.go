package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// HeaderRequestID carries the request id in and out
const HeaderRequestID = "X-Request-ID"

// RequestID reuses the caller's X-Request-ID or assigns a new one
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set("requestID", rid)
		c.Header(HeaderRequestID, rid)
		c.Next()
	}
}

// RequestLogger logs one line per request with logrus, level chosen by status
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		entry := logrus.WithFields(logrus.Fields{
			"request_id":  c.GetString("requestID"),
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"url":         c.Request.URL.Path,
			"remote_ip":   c.ClientIP(),
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		switch {
		case status >= 500:
			entry.WithField("errors", c.Errors.String()).Error("request completed")
		case status >= 400:
			entry.Warn("request completed")
		default:
			entry.Info("request completed")
		}
	}
}
