package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/netpad/api/internal/config"
	"github.com/netpad/api/internal/infra/http/middleware"
	"github.com/netpad/api/pkg/apierror"
	"github.com/netpad/api/pkg/logger"
)

func newTestRateLimiter(t *testing.T, burst int) *middleware.RateLimiter {
	t.Helper()
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{
		Enabled:         true,
		RequestsPerSec:  0.001, // effectively no refill within a test
		Burst:           burst,
		CleanupInterval: time.Minute,
	}, logger.NewNop())
	t.Cleanup(rl.Stop)
	return rl
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	rl := newTestRateLimiter(t, 2)
	handler := rl.Middleware()(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	send := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/workflows", nil)
		r.RemoteAddr = "10.0.0.1:54321"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := send(); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 within burst, got %d", i+1, rec.Code)
		}
	}

	rec := send()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst exhausted, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != apierror.CodeRateLimitExceeded {
		t.Errorf("expected RATE_LIMIT_EXCEEDED, got %s", code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("expected Retry-After header, got %q", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected zero remaining, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := newTestRateLimiter(t, 1)
	handler := rl.Middleware()(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	send := func(addr string) int {
		r := httptest.NewRequest(http.MethodGet, "/workflows", nil)
		r.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		return rec.Code
	}

	if code := send("10.0.0.1:1000"); code != http.StatusOK {
		t.Fatalf("first client: expected 200, got %d", code)
	}
	if code := send("10.0.0.1:1001"); code != http.StatusTooManyRequests {
		t.Fatalf("same client: expected 429, got %d", code)
	}
	// A different client has its own bucket.
	if code := send("10.0.0.2:1000"); code != http.StatusOK {
		t.Fatalf("second client: expected 200, got %d", code)
	}
}

func TestRateLimitWithStop_DisabledPassesThrough(t *testing.T) {
	mw, stop := middleware.RateLimitWithStop(&config.RateLimitConfig{Enabled: false}, logger.NewNop())
	defer stop()

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 10; i++ {
		r := httptest.NewRequest(http.MethodGet, "/workflows", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected pass-through when disabled, got %d", rec.Code)
		}
	}
}
