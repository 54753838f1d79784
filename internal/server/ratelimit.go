package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	staleAfter    = 3 * time.Minute
	sweepInterval = time.Minute
)

type limitedClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client address. Idle buckets are
// swept lazily on access.
type rateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*limitedClient
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiter(perMinute, burst int) *rateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &rateLimiter{
		clients: make(map[string]*limitedClient),
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		now:     time.Now,
	}
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > sweepInterval {
		for k, c := range rl.clients {
			if now.Sub(c.lastSeen) > staleAfter {
				delete(rl.clients, k)
			}
		}
		rl.lastSweep = now
	}

	c, ok := rl.clients[key]
	if !ok {
		c = &limitedClient{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey is the direct peer address. Forwarding headers are not trusted.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
