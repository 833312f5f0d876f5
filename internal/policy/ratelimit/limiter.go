// Package ratelimit throttles requests per host with token buckets.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration. A non-positive RPS disables
// throttling.
type Config struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// Limiter keeps one token bucket per host. It is shared by every shop
// session, so two sources on the same host share a budget.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	delay    *prometheus.HistogramVec
}

// New creates a Limiter. When reg is non-nil, wait times longer than a
// millisecond are recorded in pricefetch_rate_limit_delay_seconds.
func New(cfg Config, reg prometheus.Registerer) (*Limiter, error) {
	limit := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	l := &Limiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
	if reg != nil {
		l.delay = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pricefetch_rate_limit_delay_seconds",
			Help:    "Time requests spent waiting for a rate limit token, by host.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"host"})
		if err := reg.Register(l.delay); err != nil {
			return nil, fmt.Errorf("register rate limit metric: %w", err)
		}
	}
	return l, nil
}

// Wait blocks until host may send another request or ctx ends.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	if host == "" {
		host = "unknown"
	}
	l.mu.Lock()
	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if d := time.Since(start); d > time.Millisecond && l.delay != nil {
		l.delay.WithLabelValues(host).Observe(d.Seconds())
	}
	return nil
}
