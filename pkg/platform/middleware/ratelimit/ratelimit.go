// Package ratelimit throttles abuse-prone endpoints (login, register,
// checkout) with a token bucket per client key.
package ratelimit

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	request "storefront/pkg/platform/middleware/request"
	"storefront/pkg/requestcontext"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per key.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	rate    rate.Limit
	burst   int
	idleTTL time.Duration
	logger  *slog.Logger
}

func New(perSecond float64, burst int, logger *slog.Logger) *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
		rate:    rate.Limit(perSecond),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		logger:  logger,
	}
}

// Allow reports whether key may proceed now.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = time.Now()
	l.mu.Unlock()
	return e.limiter.Allow()
}

// Sweep drops buckets idle longer than the idle TTL.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, e := range l.entries {
		if now.Sub(e.lastSeen) > l.idleTTL {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Middleware keys on the authenticated user when present, else the client IP.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := requestcontext.ClientIP(ctx)
		if userID := requestcontext.UserID(ctx); !userID.IsNil() {
			key = userID.String()
		}
		if key == "" {
			key = r.RemoteAddr
		}
		if !l.Allow(key) {
			if l.logger != nil {
				l.logger.WarnContext(ctx, "rate limit exceeded",
					"key", key,
					"path", r.URL.Path,
					"request_id", request.GetRequestID(ctx),
				)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limited","error_description":"Too many requests"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
