// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/clinic-session/internal/core"
)

const keyPrefix = "clinicd:attempts:"

var (
	attemptsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinicd_auth_attempts_rejected_total",
		Help: "Login and register attempts refused by the attempt limiter.",
	}, []string{"route"})

	limiterFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clinicd_auth_limiter_fallbacks_total",
		Help: "Decisions taken by local buckets because redis failed.",
	})
)

type AttemptLimitConfig struct {
	Limit redis_rate.Limit
	// Key defaults to KeyByRoute.
	Key func(*http.Request) string
}

// AttemptLimiter throttles credential submissions. Counters live in redis
// when a client is given, so every daemon of a profile shares them; local
// token buckets take over when redis is absent or failing.
type AttemptLimiter struct {
	cfg    AttemptLimitConfig
	remote *redis_rate.Limiter
	local  *buckets
}

// NewAttemptLimiter stops sweeping idle local buckets when ctx ends.
func NewAttemptLimiter(
	ctx context.Context,
	rdb *redis.Client,
	cfg AttemptLimitConfig,
) *AttemptLimiter {
	if cfg.Key == nil {
		cfg.Key = KeyByRoute
	}

	l := &AttemptLimiter{cfg: cfg, local: newBuckets()}
	if rdb != nil {
		l.remote = redis_rate.NewLimiter(rdb)
	}
	go l.local.sweep(ctx)
	return l
}

func (l *AttemptLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := l.decide(r.Context(), l.cfg.Key(r))
		writeLimitHeaders(w, res, l.cfg.Limit)

		if res.Allowed == 0 {
			attemptsRejected.WithLabelValues(routeOf(r)).Inc()
			writeTooManyAttempts(w, res)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *AttemptLimiter) decide(ctx context.Context, key string) *redis_rate.Result {
	if l.remote != nil {
		res, err := l.remote.Allow(ctx, key, l.cfg.Limit)
		if err == nil {
			return res
		}
		limiterFallbacks.Inc()
		slog.Debug("attempt limiter using local buckets", "error", err)
	}
	return l.local.take(key, l.cfg.Limit)
}

// ClientIP trusts the last X-Forwarded-For hop, then X-Real-IP, then the
// socket peer.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		return strings.TrimSpace(hops[len(hops)-1])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// KeyByRoute buckets per client and route pattern, so login and register
// are counted apart.
func KeyByRoute(r *http.Request) string {
	return keyPrefix + ClientIP(r) + ":" + routeOf(r)
}

func routeOf(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func writeLimitHeaders(w http.ResponseWriter, res *redis_rate.Result, limit redis_rate.Limit) {
	h := w.Header()
	h.Set("RateLimit-Policy", fmt.Sprintf("%d;w=%d", limit.Rate, int(limit.Period.Seconds())))
	h.Set("RateLimit", fmt.Sprintf("%d;t=%d", res.Remaining, int(res.ResetAfter.Seconds())))
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
}

func writeTooManyAttempts(w http.ResponseWriter, res *redis_rate.Result) {
	retryAfter := max(int(res.RetryAfter.Seconds()), 1)
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

	core.JSONError(w, core.NewAppError(
		nil,
		fmt.Sprintf("Too many attempts. Retry after %d seconds.", retryAfter),
		http.StatusTooManyRequests,
		"RATE_LIMITED",
	))
}

const (
	sweepInterval = 5 * time.Minute
	bucketIdleTTL = 10 * time.Minute
)

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type buckets struct {
	mu sync.Mutex
	m  map[string]*bucket
}

func newBuckets() *buckets {
	return &buckets{m: make(map[string]*bucket)}
}

func (b *buckets) take(key string, limit redis_rate.Limit) *redis_rate.Result {
	perSec := float64(limit.Rate) / limit.Period.Seconds()
	refill := time.Duration(float64(time.Second) / perSec)

	b.mu.Lock()
	defer b.mu.Unlock()

	bk, ok := b.m[key]
	if !ok {
		bk = &bucket{lim: rate.NewLimiter(rate.Limit(perSec), limit.Burst)}
		b.m[key] = bk
	}
	bk.lastSeen = time.Now()

	res := &redis_rate.Result{
		Limit:      limit,
		RetryAfter: -1,
		ResetAfter: refill,
	}
	if bk.lim.Allow() {
		res.Allowed = 1
	} else {
		res.RetryAfter = refill
	}
	res.Remaining = max(int(bk.lim.Tokens()), 0)
	return res
}

func (b *buckets) sweep(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			b.mu.Lock()
			for key, bk := range b.m {
				if now.Sub(bk.lastSeen) > bucketIdleTTL {
					delete(b.m, key)
				}
			}
			b.mu.Unlock()
		}
	}
}

// Per builds a limit of n attempts per window with the given burst.
func Per(n, burst int, window time.Duration) redis_rate.Limit {
	return redis_rate.Limit{
		Rate:   n,
		Burst:  burst,
		Period: window,
	}
}
