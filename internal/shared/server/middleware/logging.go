package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"legal-backend/internal/shared/telemetry"
)

// Logging emits one structured line per request. Document fields appear only
// when a handler tagged the request; server errors log at error level.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"route":       route,
			"path":        c.Request.URL.Path,
			"status":      status,
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
		}
		for key, field := range map[string]string{
			documentIDKey:       "document_id",
			documentStatusKey:   "document_status",
			statusTransitionKey: "status_transition",
			errorCodeKey:        "error_code",
		} {
			if v := c.GetString(key); v != "" {
				fields[field] = v
			}
		}
		if c.Request.Method == http.MethodPost && c.Request.ContentLength > 0 {
			fields["request_bytes"] = c.Request.ContentLength
		}

		if status >= http.StatusInternalServerError {
			telemetry.Error("request.complete", fields)
			return
		}
		telemetry.Info("request.complete", fields)
	}
}
