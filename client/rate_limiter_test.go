package client

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiter_Disabled(t *testing.T) {
	assert.Nil(t, newRateLimiter(0))
	assert.Nil(t, newRateLimiter(-5))
}

func TestNewRateLimiter_MinimumBurst(t *testing.T) {
	lim := newRateLimiter(0.5)
	require.NotNil(t, lim)
	assert.Equal(t, 1, lim.Burst())
}

func TestRateLimiter_SpacesRequests(t *testing.T) {
	var hits int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`[]`))
	})
	c.SetRateLimit(10)

	start := time.Now()
	for i := 0; i < 15; i++ {
		c.ListDevices(context.Background(), "tok")
	}
	// A burst of 10 goes through immediately; the remaining 5 wait ~100ms each.
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
	assert.Equal(t, int32(15), atomic.LoadInt32(&hits))
}

func TestRateLimiter_CancelledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"return_value":1}`))
	})
	c.SetRateLimit(1)
	ctx := context.Background()

	_, err := c.CallFunction(ctx, "tok", "dev-1", "open")
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = c.CallFunction(cancelled, "tok", "dev-1", "open")
	assert.Error(t, err)
}
