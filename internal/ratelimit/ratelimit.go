package ratelimit

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// idleTTL is how long an unused client limiter is kept
const idleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces a token bucket per client key
type RateLimiter struct {
	rate    rate.Limit
	burst   int
	enabled bool
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	limiters map[string]*clientLimiter
	rejected int64
}

// NewRateLimiter creates a new rate limiter with the given limits
func NewRateLimiter(requestsPerSecond, burst int, enabled bool, logger *slog.Logger) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		enabled:  enabled,
		logger:   logger.With("component", "ratelimit"),
		now:      time.Now,
		limiters: make(map[string]*clientLimiter),
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, exists := rl.limiters[key]
	if !exists {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = cl
	}
	cl.lastSeen = rl.now()
	return cl.limiter
}

// AllowRequest reports whether the client identified by key may proceed
func (rl *RateLimiter) AllowRequest(key string) bool {
	if !rl.enabled {
		return true
	}
	if rl.getLimiter(key).AllowN(rl.now(), 1) {
		return true
	}
	rl.mu.Lock()
	rl.rejected++
	rl.mu.Unlock()
	return false
}

// Middleware rejects requests over the limit with 429. Clients are keyed
// by IP address.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if !rl.AllowRequest(key) {
			rl.logger.Warn("rate limit exceeded", "client", key, "method", c.Request.Method, "path", c.FullPath())
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// Cleanup removes limiters of clients idle for longer than idleTTL
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idleTTL)
	removed := 0
	for key, cl := range rl.limiters {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

// StartCleanup periodically runs Cleanup until stop is closed
func (rl *RateLimiter) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if n := rl.Cleanup(); n > 0 {
					rl.logger.Debug("removed idle limiters", "count", n)
				}
			}
		}
	}()
}

// GetStats returns current rate limiter statistics
func (rl *RateLimiter) GetStats() Stats {
	if !rl.enabled {
		return Stats{Enabled: false}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	return Stats{
		Enabled:           true,
		RequestsPerSecond: float64(rl.rate),
		Burst:             rl.burst,
		TrackedClients:    len(rl.limiters),
		Rejected:          rl.rejected,
	}
}

// Stats contains rate limiter statistics
type Stats struct {
	Enabled           bool    `json:"enabled"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
	TrackedClients    int     `json:"tracked_clients"`
	Rejected          int64   `json:"rejected"`
}

// Reset forgets all clients
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.limiters = make(map[string]*clientLimiter)
	rl.rejected = 0
}
