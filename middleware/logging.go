package middleware

import (
	"time"

	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/relaygate/core/apikey"
	"github.com/relaygate/core/internal/logging"
)

// ContextKeyRequestID is the gin context key holding the per-request id.
const ContextKeyRequestID = "relaygate.requestId"

// RequestLogging stamps a request id onto the gin context and logs a single
// structured line per completed request, mirroring the teacher's
// AbortWithError severity split (4xx logs at warn, everything else at error,
// success at info).
func RequestLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestId := uuid.NewString()
		c.Set(ContextKeyRequestID, requestId)
		c.Writer.Header().Set("X-Request-Id", requestId)

		if logging.Logger != nil {
			lg := logging.Logger.With(zap.String("request_id", requestId))
			c.Request = c.Request.WithContext(logging.NewContext(c.Request.Context(), lg))
		}

		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("request_id", requestId),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		}
		if key, ok := c.Get(ContextKeyAPIKey); ok {
			fields = append(fields, zap.String("api_key", key.(*apikey.APIKey).KeyPrefix))
		}

		status := c.Writer.Status()
		switch {
		case status >= 500:
			logging.SysError("request completed", fields...)
		case status >= 400:
			logging.SysWarn("request completed", fields...)
		default:
			logging.SysLog("request completed", fields...)
		}
	}
}

// RequestID reads the id stamped by RequestLogging, or "" if it hasn't run.
func RequestID(c *gin.Context) string {
	if v, ok := c.Get(ContextKeyRequestID); ok {
		return v.(string)
	}
	return ""
}
