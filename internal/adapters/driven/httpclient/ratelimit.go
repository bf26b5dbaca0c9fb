package httpclient

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultBackoff applies after a 429 without a usable Retry-After.
const defaultBackoff = 30 * time.Second

// RateLimitConfig holds per-host rate limiting configuration.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate. Zero disables limiting.
	RequestsPerSecond float64

	// BurstSize is the maximum burst size.
	BurstSize int
}

// hostLimiter throttles one host with a token bucket and honours backoff
// after a rate-limited response.
type hostLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// Wait blocks until a request can be made without exceeding the limit.
func (h *hostLimiter) Wait(ctx context.Context) error {
	h.mu.Lock()
	retryAt := h.retryAt
	h.mu.Unlock()

	if time.Now().Before(retryAt) {
		timer := time.NewTimer(time.Until(retryAt))
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	if h.limiter == nil {
		return nil
	}
	return h.limiter.Wait(ctx)
}

// backoff delays the next request to this host by d.
func (h *hostLimiter) backoff(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d <= 0 {
		d = defaultBackoff
	}
	if at := time.Now().Add(d); at.After(h.retryAt) {
		h.retryAt = at
	}
}

// limiters hands out one hostLimiter per host.
type limiters struct {
	cfg   RateLimitConfig
	mu    sync.Mutex
	hosts map[string]*hostLimiter
}

func newLimiters(cfg RateLimitConfig) *limiters {
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 1
	}
	return &limiters{cfg: cfg, hosts: make(map[string]*hostLimiter)}
}

func (l *limiters) forHost(host string) *hostLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.hosts[host]
	if !ok {
		h = &hostLimiter{}
		if l.cfg.RequestsPerSecond > 0 {
			h.limiter = rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.BurstSize)
		}
		l.hosts[host] = h
	}
	return h
}
