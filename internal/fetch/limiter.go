package fetch

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter wraps a rate.Limiter that speeds up on success and backs
// off when a host answers 429. The rate stays within [initial/4, initial*2].
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive rate limiter.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setRate(a.currentRate * 1.2)
}

// OnRateLimit halves the rate.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setRate(a.currentRate * 0.5)
	zap.L().Warn("fetch: reducing host rate after 429",
		zap.Float64("new_rate", float64(a.currentRate)),
	)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

func (a *AdaptiveLimiter) setRate(r rate.Limit) {
	r = min(max(r, a.minRate), a.maxRate)
	a.currentRate = r
	a.limiter.SetLimit(r)
}

// HostLimiter hands out one AdaptiveLimiter per host, created on first use.
type HostLimiter struct {
	rate  rate.Limit
	burst int

	mu    sync.Mutex
	hosts map[string]*AdaptiveLimiter
}

// NewHostLimiter creates a HostLimiter. Non-positive values default to 2
// requests per second with a burst of 2.
func NewHostLimiter(perSecond float64, burst int) *HostLimiter {
	if perSecond <= 0 {
		perSecond = 2
	}
	if burst <= 0 {
		burst = 2
	}
	return &HostLimiter{
		rate:  rate.Limit(perSecond),
		burst: burst,
		hosts: make(map[string]*AdaptiveLimiter),
	}
}

// For returns the limiter for host.
func (h *HostLimiter) For(host string) *AdaptiveLimiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	lim, ok := h.hosts[host]
	if !ok {
		lim = NewAdaptiveLimiter(h.rate, h.burst)
		h.hosts[host] = lim
	}
	return lim
}
