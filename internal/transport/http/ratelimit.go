package http

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter manages per-IP request rate limiting
type RateLimiter struct {
	ips             map[string]*ipLimiter
	mu              sync.Mutex
	rps             rate.Limit
	burst           int
	cleanupInterval time.Duration
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		ips:             make(map[string]*ipLimiter),
		rps:             rate.Limit(rps),
		burst:           burst,
		cleanupInterval: 10 * time.Minute,
	}

	go rl.cleanup()

	return rl
}

// GetLimiter returns the limiter for an IP, creating one on first sight
func (rl *RateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.ips[ip]
	if !exists {
		entry = &ipLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.ips[ip] = entry
	}
	entry.lastSeen = time.Now()

	return entry.limiter
}

// cleanup evicts limiters for IPs idle longer than the cleanup interval
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	for range ticker.C {
		cutoff := time.Now().Add(-rl.cleanupInterval)
		rl.mu.Lock()
		for ip, entry := range rl.ips {
			if entry.lastSeen.Before(cutoff) {
				delete(rl.ips, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimitMiddleware creates a middleware for rate limiting
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := getIPAddress(r)

			limiter := rl.GetLimiter(ip)
			if !limiter.Allow() {
				respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
