package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/harry-2401/reddit/internal/metrics"
	"github.com/harry-2401/reddit/internal/shared/apperr"
	"github.com/harry-2401/reddit/internal/shared/httpx"

	"github.com/redis/go-redis/v9"
)

type Limiter struct{ R *redis.Client }

func New(r *redis.Client) *Limiter { return &Limiter{R: r} }

// Allow counts a hit against key in a fixed window that starts with the first
// hit. It returns whether the hit is within limit and the count so far.
func (l *Limiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	k := "rl:" + key
	pipe := l.R.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}
	n := incr.Val()
	return n <= limit, n, nil
}

type KeyFunc func(*http.Request) (string, error)

// Middleware limits requests per key. name separates the counters of
// different routes sharing a key.
func (l *Limiter) Middleware(name string, limit int64, window time.Duration, keyFn KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := keyFn(r)
			if err != nil || key == "" {
				httpx.WriteError(w, http.StatusUnauthorized, apperr.ErrUnauthorized, "missing_user")
				return
			}
			ok, n, err := l.Allow(r.Context(), name+":"+key, limit, window)
			if err != nil {
				httpx.WriteError(w, http.StatusServiceUnavailable, fmt.Errorf("rate limiter error"), "rate_limiter_error")
				return
			}
			if !ok {
				metrics.RateLimited.WithLabelValues(name).Inc()
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				httpx.WriteError(w, http.StatusTooManyRequests,
					fmt.Errorf("rate limit exceeded (count=%d, limit=%d)", n, limit),
					"rate_limited")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ByUser keys on the authenticated caller; it must run after the auth
// middleware.
func ByUser(r *http.Request) (string, error) {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return "", err
	}
	return "u:" + strconv.FormatUint(uid, 10), nil
}

// ByIP keys on the client address, preferring the first X-Forwarded-For hop.
func ByIP(r *http.Request) (string, error) {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if ip := strings.TrimSpace(strings.Split(fwd, ",")[0]); ip != "" {
			return "ip:" + ip, nil
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host, nil
}
