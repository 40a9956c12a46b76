package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rzzdr/quant-scenario-engine/pkg/metrics"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/logger"
)

// LoggingMiddleware logs one line per request keyed by route template.
// Server errors are logged at Warn, everything else at Info.
func LoggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		fields := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"bytes", c.Writer.Size(),
			"client", c.ClientIP(),
		}
		if id := c.Param("id"); id != "" {
			fields = append(fields, "run_id", id)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		entry := log.With(fields...)
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warnf("%s %s", c.Request.Method, c.Request.URL.Path)
			return
		}
		entry.Infof("%s %s", c.Request.Method, c.Request.URL.Path)
	}
}

// MetricsMiddleware captures API metrics, labelled by route template
func MetricsMiddleware(recorder *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		// Process request
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		recorder.RecordAPIRequest(method, path, c.Writer.Status(), time.Since(start))
	}
}

// CORSMiddleware allows browser clients of the read and run endpoints. Preflight
// requests are answered directly.
func CORSMiddleware(allowOrigin string) gin.HandlerFunc {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", allowOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RecoveryMiddleware turns a handler panic into a 500 carrying the internal error type
func RecoveryMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				err := errors.Internal(fmt.Sprintf("panic in %s: %v", c.FullPath(), r))
				log.Errorf("%v", err)
				_ = c.Error(err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": err.Error(),
					"type":  errors.TypeOf(err).String(),
				})
			}
		}()

		c.Next()
	}
}
