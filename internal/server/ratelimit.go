package server

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// rateLimiter is a per-client token bucket guarding the query endpoints.
type rateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*bucket
	perMinute int
	lastSweep time.Time
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

func newRateLimiter(perMinute int) *rateLimiter {
	return &rateLimiter{
		clients:   make(map[string]*bucket),
		perMinute: perMinute,
		lastSweep: time.Now(),
	}
}

// middleware rejects over-limit requests with 429.
func (rl *rateLimiter) middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientHost(r)) {
			http.Error(w, "rate limit exceeded, try again later", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

func (rl *rateLimiter) allow(host string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.sweepLocked(now)

	b, exists := rl.clients[host]
	if !exists {
		rl.clients[host] = &bucket{tokens: rl.perMinute - 1, lastRefill: now}
		return true
	}

	refill := int(now.Sub(b.lastRefill).Minutes() * float64(rl.perMinute))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > rl.perMinute {
			b.tokens = rl.perMinute
		}
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// sweepLocked drops buckets idle for ten minutes. Runs at most once per
// five minutes, from inside allow.
func (rl *rateLimiter) sweepLocked(now time.Time) {
	if now.Sub(rl.lastSweep) < 5*time.Minute {
		return
	}
	rl.lastSweep = now
	for host, b := range rl.clients {
		if now.Sub(b.lastRefill) > 10*time.Minute {
			delete(rl.clients, host)
		}
	}
}

// clientHost extracts the client address without the ephemeral port, so
// one client maps to one bucket across connections.
func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
