package util

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter paces outbound requests with a token bucket that refills at
// a fixed per-minute rate and allows short bursts.
type RateLimiter struct {
	lim *rate.Limiter
}

// NewRateLimiter creates a RateLimiter that allows perMinute operations per
// minute with the given burst. A non-positive perMinute disables limiting.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	if perMinute <= 0 {
		return &RateLimiter{lim: rate.NewLimiter(rate.Inf, burst)}
	}
	return &RateLimiter{lim: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)}
}

// Wait blocks until a token is available or the context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return ctx.Err()
	}
	return rl.lim.Wait(ctx)
}
