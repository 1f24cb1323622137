package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/miguelbenajes/HoldedConnector/internal/httputil"
)

// RateLimiter enforces a per-client-IP request budget of max requests per
// window. Budgets refill continuously rather than resetting at window edges.
type RateLimiter struct {
	limit      rate.Limit
	burst      int
	window     time.Duration
	trustProxy bool
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing max requests per window per IP.
func NewRateLimiter(max int, window time.Duration, trustProxy bool, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		limit:      rate.Every(window / time.Duration(max)),
		burst:      max,
		window:     window,
		trustProxy: trustProxy,
		logger:     logger,
		now:        time.Now,
		clients:    make(map[string]*client),
	}
}

// Allow consumes one request from ip's budget. When the budget is exhausted
// it reports how long until the next request would be admitted.
func (rl *RateLimiter) Allow(ip string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	c, ok := rl.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = now
	rl.mu.Unlock()

	r := c.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, rl.window
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Middleware rejects over-budget requests with 429 and a Retry-After header.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := httputil.ClientIP(r, rl.trustProxy)
		ok, retryAfter := rl.Allow(ip)
		if !ok {
			rl.logger.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
			httputil.RespondTooManyRequests(w, retryAfter, "Too many requests. Please wait a moment.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Evict drops clients idle for longer than one window and returns how many
// were removed. An idle client's bucket is full again, so dropping it is
// indistinguishable from keeping it.
func (rl *RateLimiter) Evict() int {
	cutoff := rl.now().Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for ip, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, ip)
			removed++
		}
	}
	return removed
}

// Run evicts idle clients every window until ctx is cancelled.
func (rl *RateLimiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := rl.Evict(); n > 0 {
				rl.logger.Debug("evicted idle rate limit entries", "count", n)
			}
		}
	}
}

// Size returns the number of tracked clients.
func (rl *RateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
