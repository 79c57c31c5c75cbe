package push

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spreads sends over a minute. Unlike a drop-on-full limiter it
// makes the caller wait, so no leak notification is ever skipped.
type RateLimiter struct {
	limiter *rate.Limiter
}

func NewRateLimiter(maxPerMinute int) *RateLimiter {
	if maxPerMinute <= 0 {
		return &RateLimiter{}
	}
	every := time.Minute / time.Duration(maxPerMinute)
	return &RateLimiter{limiter: rate.NewLimiter(rate.Every(every), maxPerMinute)}
}

func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil || r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}
