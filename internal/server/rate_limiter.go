package server

import (
	"time"

	"golang.org/x/time/rate"
)

// newRateLimiter returns a token bucket holding cfg.Burst tokens that refills
// completely once per cfg.RefillInterval.
func newRateLimiter(cfg RateLimitConfig) *rate.Limiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultRateLimitBurst
	}
	interval := cfg.RefillInterval
	if interval <= 0 {
		interval = time.Second
	}

	every := interval / time.Duration(burst)
	if every <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Every(every), burst)
}
