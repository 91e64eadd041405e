package logger

import (
	"io"
	"log/slog"
	"os"
)

const serviceName = "loan-servicing"

var defaultLogger *slog.Logger

func Init(env string) {
	defaultLogger = New(os.Stdout, env)
	slog.SetDefault(defaultLogger)
}

// New builds a service-tagged logger writing to w. Production logs JSON at
// info level; everything else gets human-readable text at debug.
func New(w io.Writer, env string) *slog.Logger {
	var handler slog.Handler

	if env == "production" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	}

	return slog.New(handler).With("service", serviceName)
}

func LoggerWrapper() *slog.Logger {
	if defaultLogger == nil {
		// lazy initialize a development logger to avoid nil pointer panics
		Init("development")
	}
	return defaultLogger
}
