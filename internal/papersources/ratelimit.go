package papersources

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter wraps a token bucket limiter for throttling requests to an
// external API. The underlying rate.Limiter is goroutine-safe, so a single
// RateLimiter can be shared across concurrent searches.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a rate limiter allowing a sustained ratePerSecond
// with bursts of up to burst requests.
//
// Example configurations:
//   - arXiv: NewRateLimiter(1, 1) per the API's courtesy guidelines
//   - OpenAlex: NewRateLimiter(10, 10) for the polite pool
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// Wait blocks until a request is allowed or the context is canceled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed without waiting,
// consuming one token when it returns true.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Tokens returns the number of tokens currently available.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
