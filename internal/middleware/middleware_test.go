// AngelaMos | 2026
// middleware_test.go

package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/clinic-session/internal/config"
	"github.com/carterperez-dev/clinic-session/internal/middleware"
)

var noContent = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func hit(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func loginRouter(l *middleware.AttemptLimiter) http.Handler {
	r := chi.NewRouter()
	r.With(l.Handler).Post("/v1/session/login", noContent)
	r.With(l.Handler).Post("/v1/session/register", noContent)
	return r
}

func post(path string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.RemoteAddr = "127.0.0.1:5000"
	return req
}

func TestAttemptLimiter_LocalBuckets(t *testing.T) {
	l := middleware.NewAttemptLimiter(t.Context(), nil, middleware.AttemptLimitConfig{
		Limit: middleware.Per(2, 2, time.Minute),
	})
	h := loginRouter(l)

	assert.Equal(t, http.StatusNoContent, hit(h, post("/v1/session/login")).Code)
	assert.Equal(t, http.StatusNoContent, hit(h, post("/v1/session/login")).Code)

	rec := hit(h, post("/v1/session/login"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")

	assert.Equal(t, http.StatusNoContent, hit(h, post("/v1/session/register")).Code)
}

func TestAttemptLimiter_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	l := middleware.NewAttemptLimiter(t.Context(), rdb, middleware.AttemptLimitConfig{
		Limit: middleware.Per(1, 1, time.Minute),
	})
	h := loginRouter(l)

	rec := hit(h, post("/v1/session/login"))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	assert.Equal(t, http.StatusTooManyRequests, hit(h, post("/v1/session/login")).Code)
}

func TestAttemptLimiter_RedisDownFallsBackLocally(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	l := middleware.NewAttemptLimiter(t.Context(), rdb, middleware.AttemptLimitConfig{
		Limit: middleware.Per(1, 1, time.Minute),
	})
	h := loginRouter(l)

	assert.Equal(t, http.StatusNoContent, hit(h, post("/v1/session/login")).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, post("/v1/session/login")).Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", middleware.ClientIP(req))

	req.Header.Set("X-Forwarded-For", "1.1.1.1, 2.2.2.2")
	assert.Equal(t, "2.2.2.2", middleware.ClientIP(req))
}

func TestRequestID(t *testing.T) {
	var seen string
	h := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = middleware.GetRequestID(r.Context())
	}))

	rec := hit(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(middleware.RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc-123")
	hit(h, req)
	assert.Equal(t, "abc-123", seen)
}

func TestCORS(t *testing.T) {
	h := middleware.CORS(config.CORSConfig{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})(noContent)

	pre := httptest.NewRequest(http.MethodOptions, "/v1/session", nil)
	pre.Header.Set("Origin", "http://localhost:3000")
	pre.Header.Set("Access-Control-Request-Method", "POST")
	rec := hit(h, pre)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "GET, POST", rec.Header().Get("Access-Control-Allow-Methods"))

	evil := httptest.NewRequest(http.MethodOptions, "/v1/session", nil)
	evil.Header.Set("Origin", "http://evil.test")
	evil.Header.Set("Access-Control-Request-Method", "POST")
	assert.Equal(t, http.StatusForbidden, hit(h, evil).Code)
}

func TestSecurityHeaders(t *testing.T) {
	rec := hit(middleware.SecurityHeaders(true)(noContent), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}
