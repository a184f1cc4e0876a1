// Package logger provides structured logging built on log/slog.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with additional functionality.
type Logger struct {
	*slog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level  string
	Format string
	Output io.Writer
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
		Output: os.Stdout,
	}
}

// New creates a new Logger instance.
func New(cfg Config) *Logger {
	level := parseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   level == slog.LevelDebug,
		ReplaceAttr: sanitizeAttr,
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewNop returns a logger that discards all output. Useful in tests.
func NewNop() *Logger {
	return New(Config{Level: "error", Output: io.Discard})
}

// sensitiveKeys contains keys whose values are masked in logs to prevent
// accidental credential leakage.
var sensitiveKeys = map[string]bool{
	"password":          true,
	"secret":            true,
	"token":             true,
	"authorization":     true,
	"api_key":           true,
	"apikey":            true,
	"access_token":      true,
	"refresh_token":     true,
	"jwt":               true,
	"cookie":            true,
	"connection_string": true,
	"dsn":               true,
	"database_url":      true,
	"encryption_key":    true,
	"vault_key":         true,
}

func sanitizeAttr(_ []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, "***MASKED***")
	}
	return a
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a Logger with the given attributes attached.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// ContextKey is the type used for context values carried into log records.
type ContextKey string

// Well-known context keys.
const (
	ContextKeyRequestID ContextKey = "request_id"
	ContextKeyUserID    ContextKey = "user_id"
	ContextKeyOrgID     ContextKey = "org_id"
)

// WithContext returns a Logger enriched with request-scoped attributes
// found in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	log := l
	for _, key := range []ContextKey{ContextKeyRequestID, ContextKeyUserID, ContextKeyOrgID} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			log = log.With(string(key), v)
		}
	}
	return log
}
