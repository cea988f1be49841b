package client

import (
	"context"

	"golang.org/x/time/rate"
)

// newRateLimiter returns a limiter allowing requestsPerSecond with a burst of
// one second worth of requests, or nil when limiting is disabled.
func newRateLimiter(requestsPerSecond float64) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// SetRateLimit changes the outbound request rate. A non-positive value disables limiting.
func (c *Client) SetRateLimit(requestsPerSecond float64) {
	c.limiter = newRateLimiter(requestsPerSecond)
}

// wait blocks until the limiter admits one more request.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}
