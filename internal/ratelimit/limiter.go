// Package ratelimit provides per-IP rate limiting for the analyze
// endpoint. Limits are enforced in process with token buckets; the
// pipeline behind the endpoint has its own queue-depth backpressure, this
// layer just keeps one chatty client from starving the rest.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration.
type Config struct {
	RequestsPerMinute int
	Burst             int
	// IdleEviction bounds how long an idle client's bucket is retained.
	IdleEviction time.Duration
}

// DefaultConfig returns the default rate limiting configuration.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 600,
		Burst:             60,
		IdleEviction:      10 * time.Minute,
	}
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter tracks one token bucket per client IP.
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	clients map[string]*clientBucket
	stopCh  chan struct{}
}

// NewLimiter creates a limiter and starts its idle-bucket eviction loop.
func NewLimiter(cfg Config) *Limiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultConfig().Burst
	}
	if cfg.IdleEviction <= 0 {
		cfg.IdleEviction = DefaultConfig().IdleEviction
	}

	l := &Limiter{
		cfg:     cfg,
		clients: make(map[string]*clientBucket),
		stopCh:  make(chan struct{}),
	}
	go l.evictIdle()
	return l
}

// Allow reports whether the client identified by ip may proceed.
func (l *Limiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.clients[ip]
	if !ok {
		bucket = &clientBucket{
			limiter: rate.NewLimiter(rate.Limit(float64(l.cfg.RequestsPerMinute)/60.0), l.cfg.Burst),
		}
		l.clients[ip] = bucket
	}
	bucket.lastSeen = time.Now()
	return bucket.limiter.Allow()
}

// Stop terminates the eviction loop.
func (l *Limiter) Stop() {
	close(l.stopCh)
}

func (l *Limiter) evictIdle() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-l.cfg.IdleEviction)
			l.mu.Lock()
			for ip, bucket := range l.clients {
				if bucket.lastSeen.Before(cutoff) {
					delete(l.clients, ip)
				}
			}
			l.mu.Unlock()
		case <-l.stopCh:
			return
		}
	}
}

// Middleware returns a gin handler enforcing the per-IP limit.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
