package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homehub/cast-server-go/internal/service"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type staticLimiter struct {
	allowed bool
	resetAt time.Time
	keys    []string
}

func (l *staticLimiter) CheckLimit(_ context.Context, key string, _ int, _ time.Duration) (bool, time.Time) {
	l.keys = append(l.keys, key)
	return l.allowed, l.resetAt
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("sets rate limit headers", func(t *testing.T) {
		reset := time.Now().Add(time.Minute)
		limiter := &staticLimiter{allowed: true, resetAt: reset}
		handler := NewRateLimitMiddleware(limiter, 10, time.Minute, "pair").Handler(okHandler())

		req := httptest.NewRequest(http.MethodPost, "/pair", nil)
		req.RemoteAddr = "192.168.1.20:50000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
		assert.Equal(t, []string{"ip:pair:192.168.1.20"}, limiter.keys)
	})

	t.Run("returns 429 when rate limited", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		limiter := &staticLimiter{allowed: false, resetAt: now.Add(30 * time.Second)}
		m := NewRateLimitMiddleware(limiter, 10, time.Minute, "pair")
		m.nowF = func() time.Time { return now }

		rec := httptest.NewRecorder()
		m.Handler(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pair", nil))

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "31", rec.Header().Get("Retry-After"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["code"])
	})

	t.Run("disabled with zero limit", func(t *testing.T) {
		limiter := &staticLimiter{allowed: false}
		handler := NewRateLimitMiddleware(limiter, 0, time.Minute, "pair").Handler(okHandler())

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pair", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, limiter.keys)
	})

	t.Run("blocks after limit with memory limiter", func(t *testing.T) {
		handler := NewRateLimitMiddleware(service.NewMemoryRateLimiter(nil), 2, time.Minute, "pair").Handler(okHandler())

		codes := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodPost, "/pair", nil)
			req.RemoteAddr = "10.0.0.5:1234"
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			codes = append(codes, rec.Code)
		}

		assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

		other := httptest.NewRequest(http.MethodPost, "/pair", nil)
		other.RemoteAddr = "10.0.0.6:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, other)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestBodyLimitMiddleware(t *testing.T) {
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	t.Run("rejects declared oversize body", func(t *testing.T) {
		handler := NewBodyLimitMiddleware(8).Handler(echo)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Contains(t, rec.Body.String(), "Request body too large")
	})

	t.Run("caps undeclared body", func(t *testing.T) {
		handler := NewBodyLimitMiddleware(8).Handler(echo)

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789"))
		req.ContentLength = -1
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("allows small body", func(t *testing.T) {
		handler := NewBodyLimitMiddleware(0).Handler(echo)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"pin":"123456"}`)))

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	handler := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
}
