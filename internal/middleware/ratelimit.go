package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/chazstevenson112/Steppr/internal/auth"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token bucket per authenticated user, or per client IP
// for anonymous requests.
type RateLimiter struct {
	limit      rate.Limit
	burst      int
	staleAfter time.Duration
	skip       func(*http.Request) bool
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*limiterEntry
}

// NewRateLimiter allows rps requests per second with the given burst per key.
// A non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int, skip func(*http.Request) bool) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:      rate.Limit(rps),
		burst:      burst,
		staleAfter: 10 * time.Minute,
		skip:       skip,
		now:        time.Now,
		entries:    make(map[string]*limiterEntry),
	}
}

// Wrap enforces the limit on next. It must run after authentication to key by user.
func (l *RateLimiter) Wrap(next http.Handler) http.Handler {
	if l.limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || (l.skip != nil && l.skip(r)) {
			next.ServeHTTP(w, r)
			return
		}
		if !l.limiter(clientKey(r)).Allow() {
			w.Header().Set("Retry-After", "1")
			writeProblem(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Sweep drops limiters idle for longer than the stale window.
func (l *RateLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.staleAfter)
	removed := 0
	for k, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, k)
			removed++
		}
	}
	return removed
}

func (l *RateLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[key]; ok {
		e.lastSeen = l.now()
		return e.limiter
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.entries[key] = &limiterEntry{limiter: lim, lastSeen: l.now()}
	return lim
}

func clientKey(r *http.Request) string {
	if claims, ok := auth.FromContext(r.Context()); ok {
		return "uid:" + claims.Subject
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
