package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	userIDKey    ctxKey = "user_id"
)

var defaultLogger *slog.Logger

// Init initializes the global logger with the specified level and format
func Init(level, format string) {
	InitWriter(os.Stdout, level, format)
}

// InitWriter is Init with an explicit destination
func InitWriter(w io.Writer, level, format string) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// ParseLevel maps LOG_LEVEL values to slog levels, INFO when unknown
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Get returns the default logger instance
func Get() *slog.Logger {
	if defaultLogger == nil {
		Init("INFO", "json")
	}
	return defaultLogger
}

// ContextWithRequestID stores the request id for WithContext
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// ContextWithUserID stores the authenticated user id for WithContext
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// RequestIDFromContext returns the request id set by ContextWithRequestID
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithContext returns a logger with context-specific fields
func WithContext(ctx context.Context) *slog.Logger {
	logger := Get()

	if reqID, ok := ctx.Value(requestIDKey).(string); ok && reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if userID, ok := ctx.Value(userIDKey).(string); ok && userID != "" {
		logger = logger.With("user_id", userID)
	}

	return logger
}

// WithFields returns a logger with additional key-value pairs
func WithFields(fields ...any) *slog.Logger {
	return Get().With(fields...)
}

// NewRequestID generates a new UUID for request tracking
func NewRequestID() string {
	return uuid.New().String()
}

// Fatal logs an error message and exits the application
func Fatal(msg string, args ...any) {
	Get().Error(msg, args...)
	os.Exit(1)
}
