package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"botdesk/internal/logger"
)

func AccessLog(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		details := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			details["errors"] = c.Errors.String()
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("http", "request failed", details)
		case status >= 400:
			log.Warn("http", "request rejected", details)
		default:
			log.Info("http", "request served", details)
		}
	}
}
