package middleware

import (
	"context"
	"net/http"

	"character-studio/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

type contextKey string

// RequestIDKey is the key for request ID values in contexts
const RequestIDKey contextKey = "requestID"

// RequestContext copies the request ID set by the logging middleware into the
// request's context.Context so outbound calls can forward it
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if requestID := c.GetString("requestID"); requestID != "" {
			ctx := context.WithValue(c.Request.Context(), RequestIDKey, requestID)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// GetRequestID extracts the request ID from a context
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}

	return ""
}

// MaxBodySize caps request bodies; multipart uploads beyond the limit fail
// while being parsed
func MaxBodySize(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			c.Error(errors.NewError(http.StatusRequestEntityTooLarge, errors.CodeValidation, "Request body is too large"))
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
