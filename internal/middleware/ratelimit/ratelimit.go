// Package ratelimit throttles the endpoints that spawn toolchain processes:
// a token bucket per client IP plus a global cap on concurrent jobs.
package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pendergraft/contraforge/internal/middleware/realip"
)

// Config holds the configuration for rate limiting
type Config struct {
	Enabled        bool
	RequestsPerMin int
	BurstSize      int
	CleanupMinutes int // how long an idle client's bucket is kept
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter manages per-IP token buckets
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	rate    rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
	stopCh  chan struct{}
	stopped sync.Once
}

// New creates a RateLimiter and starts its eviction loop
func New(cfg Config) *RateLimiter {
	idle := time.Duration(cfg.CleanupMinutes) * time.Minute
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}

	rl := &RateLimiter{
		clients: make(map[string]*client),
		rate:    rate.Limit(float64(cfg.RequestsPerMin) / 60.0),
		burst:   burst,
		idle:    idle,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go rl.evictLoop()
	return rl
}

// Stop stops the eviction loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopped.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(rl.idle)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.evictIdle()
		case <-rl.stopCh:
			return
		}
	}
}

// evictIdle drops buckets not used within the idle window
func (rl *RateLimiter) evictIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idle)
	for ip, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = rl.now()
	return c.limiter
}

// Middleware rejects requests from clients that exhausted their bucket
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := rl.limiterFor(realip.GetClientIP(r))
			res := limiter.Reserve()
			if delay := res.Delay(); delay > 0 {
				res.Cancel()
				retry := int(delay.Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				writeError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many build requests. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Middleware returns a per-IP rate limiting middleware, or a pass-through when disabled.
// The limiter's eviction loop runs for the lifetime of the process.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return New(cfg).Middleware()
}

// Concurrency caps the number of requests in flight through the handler.
// Excess requests wait for a slot until their context ends. max <= 0 disables the cap.
func Concurrency(max int) func(http.Handler) http.Handler {
	if max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	slots := make(chan struct{}, max)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case slots <- struct{}{}:
				defer func() { <-slots }()
				next.ServeHTTP(w, r)
			case <-r.Context().Done():
				w.Header().Set("Retry-After", "5")
				writeError(w, http.StatusServiceUnavailable, "BUILDER_BUSY", "All builders are busy. Please try again later.")
			}
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
