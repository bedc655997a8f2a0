package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"carrental/internal/logger"
	"carrental/internal/metrics"
	"carrental/internal/models"

	"github.com/gin-gonic/gin"
)

const RequestIDHeader = "X-Request-ID"

// CORS allows browser clients from any origin
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+RequestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

// RequestID propagates or assigns a request id and stores it on the request context
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = logger.NewRequestID()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// Logger logs every request; failures at error level
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status_code", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		}

		if p, ok := PrincipalFrom(c); ok {
			logFields = append(logFields, "user_id", p.UserID)
		}

		log := logger.WithContext(c.Request.Context())
		switch {
		case status >= 500:
			if len(c.Errors) > 0 {
				logFields = append(logFields, "error", c.Errors.String())
			}
			log.Error("Request completed with error", logFields...)
		case status >= 400:
			if len(c.Errors) > 0 {
				logFields = append(logFields, "error", c.Errors.String())
			}
			log.Warn("Request rejected", logFields...)
		default:
			log.Info("Request completed", logFields...)
		}
	}
}

// Metrics records request counts and latency per matched route
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// Timeout bounds the request context. Store and provider calls observe the deadline.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Recovery turns panics into a 500 envelope
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		slog.Error("PANIC recovered",
			"panic", recovered,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"client_ip", c.ClientIP(),
			"request_id", logger.RequestIDFromContext(c.Request.Context()),
		)

		if !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusInternalServerError, models.APIResponse{
				Success: false,
				Message: "Internal server error",
			})
		}
	})
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, models.APIResponse{
		Success: false,
		Message: message,
	})
}
