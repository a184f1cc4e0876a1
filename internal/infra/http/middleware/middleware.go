// Package middleware provides the HTTP middleware stack: request identity,
// logging, recovery, CORS, auth, org scoping, rate limiting, and metrics.
package middleware

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/netpad/api/internal/config"
	"github.com/netpad/api/pkg/apierror"
	"github.com/netpad/api/pkg/logger"
)

// RequestIDKey is the context key carrying the request correlation ID.
const RequestIDKey = logger.ContextKeyRequestID

// RequestID assigns each request a correlation ID, honoring one supplied
// by the client, and echoes it back in the response header.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}

			w.Header().Set("X-Request-ID", id)
			ctx := context.WithValue(r.Context(), RequestIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID extracts the request correlation ID from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// statusRecorder captures the response status code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// Hijack delegates to the underlying ResponseWriter when it supports it.
func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := rec.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, fmt.Errorf("response writer does not support hijacking")
}

// LoggerConfig tunes the request log middleware.
type LoggerConfig struct {
	// SkipPaths are not logged at all (health probes, metrics scrapes).
	SkipPaths []string

	// SkipSuccessful drops 2xx entries to cut log volume.
	SkipSuccessful bool

	// SlowRequestThreshold promotes slow requests to warnings. Zero
	// disables slow-request detection.
	SlowRequestThreshold time.Duration
}

// DefaultLoggerConfig skips probe endpoints and flags requests over 5s.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		SkipPaths: []string{
			"/health",
			"/healthz",
			"/ready",
			"/readyz",
			"/metrics",
			"/api/v1/health",
		},
		SlowRequestThreshold: 5 * time.Second,
	}
}

// Logger logs requests with the default configuration.
func Logger(log *logger.Logger) func(http.Handler) http.Handler {
	return LoggerWithConfig(log, DefaultLoggerConfig())
}

// LoggerWithConfig logs one structured entry per request, leveled by
// response status.
func LoggerWithConfig(log *logger.Logger, cfg LoggerConfig) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start)

			if cfg.SkipSuccessful && rec.status < 300 && rec.status >= 200 {
				return
			}

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", elapsed,
				"request_id", GetRequestID(r.Context()),
				"remote_addr", r.RemoteAddr,
			}

			switch {
			case rec.status >= 500:
				log.Error("http request", attrs...)
			case rec.status >= 400:
				log.Warn("http request", attrs...)
			case cfg.SlowRequestThreshold > 0 && elapsed > cfg.SlowRequestThreshold:
				log.Warn("slow http request", attrs...)
			default:
				log.Info("http request", attrs...)
			}
		})
	}
}

// Recovery converts panics into 500 responses.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return RecoveryWithConfig(log, false)
}

// RecoveryWithConfig is Recovery with a production flag; production logs
// omit stack traces.
func RecoveryWithConfig(log *logger.Logger, isProduction bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					attrs := []any{
						"error", v,
						"request_id", GetRequestID(r.Context()),
					}
					if !isProduction {
						attrs = append(attrs, "stack", string(debug.Stack()))
					}
					log.Error("panic recovered", attrs...)

					apierror.InternalError(fmt.Errorf("panic: %v", v)).WriteJSON(w)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// CORS applies the configured cross-origin policy and short-circuits
// preflight requests.
func CORS(cfg *config.CORSConfig) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	allowAll := false
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			switch {
			case allowAll:
				// Wildcard origin cannot be combined with credentials.
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Vary", "Origin")
			}

			w.Header().Set("Access-Control-Allow-Methods", methods)
			w.Header().Set("Access-Control-Allow-Headers", headers)
			w.Header().Set("Access-Control-Max-Age", maxAge)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
