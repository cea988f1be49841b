package client

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public Spark cloud API.
const DefaultBaseURL = "https://api.spark.io"

// Client talks to the Spark cloud REST API. Operations take the access token
// explicitly; the token obtained by the last successful Login is also kept on
// the client for callers that want it.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	limiter *rate.Limiter
	now     func() time.Time

	mu    sync.RWMutex
	token string
}

// NewClient creates a client for baseURL. A non-positive requestsPerSecond
// disables outbound rate limiting.
func NewClient(baseURL string, timeout time.Duration, requestsPerSecond float64) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		limiter:    newRateLimiter(requestsPerSecond),
		now:        time.Now,
	}
}

// Token returns the token granted by the last successful Login, if any.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the token kept on the client.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}
