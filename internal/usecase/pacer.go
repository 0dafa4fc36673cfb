package usecase

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitPacer spaces sequential exchange calls with a token bucket. The
// first call in a burst passes immediately; the rest wait for their slot.
type RateLimitPacer struct {
	limiter *rate.Limiter
}

// MinOrderPacing is the shortest spacing the pacer accepts.
const MinOrderPacing = 10 * time.Millisecond

// NewRateLimitPacer allows one call per interval with the given burst.
// Intervals below MinOrderPacing are raised to it.
func NewRateLimitPacer(interval time.Duration, burst int) *RateLimitPacer {
	if burst < 1 {
		burst = 1
	}
	if interval < MinOrderPacing {
		interval = MinOrderPacing
	}
	return &RateLimitPacer{limiter: rate.NewLimiter(rate.Every(interval), burst)}
}

func (p *RateLimitPacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

type noPacer struct{}

func (noPacer) Wait(ctx context.Context) error { return ctx.Err() }
