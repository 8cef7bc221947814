package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var defaultLogger *slog.Logger

// Initialize creates the default logger for env and installs it as slog's default
func Initialize(env string) *slog.Logger {
	return InitializeWriter(env, os.Stdout)
}

// InitializeWriter is Initialize with an explicit output
func InitializeWriter(env string, w io.Writer) *slog.Logger {
	var handler slog.Handler

	if env == "production" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: levelFromEnv(slog.LevelInfo),
		})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     levelFromEnv(slog.LevelDebug),
			AddSource: true,
		})
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)

	return defaultLogger
}

// Get returns the default logger, initialising a development logger on first use
func Get() *slog.Logger {
	if defaultLogger == nil {
		return Initialize("development")
	}
	return defaultLogger
}

// NewServiceLogger creates a logger for a specific service
func NewServiceLogger(serviceName string) *slog.Logger {
	return Get().With(slog.String("service", serviceName))
}

// OrDefault returns l, or slog's default logger when l is nil
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

// levelFromEnv reads LOG_LEVEL, keeping fallback when unset or unknown
func levelFromEnv(fallback slog.Level) slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}
