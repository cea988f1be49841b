package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// --- HTTP Helper Functions (kept private) ---

// createRequest builds a request against the cloud API. A non-nil form is
// sent as an urlencoded body.
func (c *Client) createRequest(ctx context.Context, method, path string, query, form url.Values) (*http.Request, error) {
	urlStr := c.BaseURL + path
	if len(query) > 0 {
		urlStr += "?" + query.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		log.Error().Err(err).Str("method", method).Str("path", path).Msg("Failed to create HTTP request object")
		return nil, err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "sparkdoor")
	return req, nil
}

// sendRequest sends the request and checks its status. Every failure is a
// *ServiceError: transport failures map to 502, timeouts to 504.
func (c *Client) sendRequest(req *http.Request) (*http.Response, error) {
	if err := c.wait(req.Context()); err != nil {
		return nil, transportError(err)
	}

	log.Debug().Str("method", req.Method).Str("path", req.URL.Path).Msg("Sending HTTP request")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("method", req.Method).Str("path", req.URL.Path).Msg("HTTP request failed")
		return nil, transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyStr := ""
		if b, readErr := io.ReadAll(io.LimitReader(resp.Body, 1024)); readErr == nil {
			bodyStr = strings.TrimSpace(string(b))
		}
		closeResponseBody(resp)
		log.Warn().Str("method", req.Method).Str("path", req.URL.Path).Int("status", resp.StatusCode).Msg("HTTP request returned non-OK status")
		return nil, &ServiceError{StatusCode: resp.StatusCode, Body: bodyStr}
	}

	log.Debug().Str("method", req.Method).Str("path", req.URL.Path).Int("status", resp.StatusCode).Msg("HTTP request successful")
	return resp, nil
}

// doJSON sends the request and decodes a JSON 2xx body into out.
func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.sendRequest(req)
	if err != nil {
		return err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return &ServiceError{StatusCode: http.StatusBadGateway, Err: err}
	}
	if err := json.Unmarshal(body, out); err != nil {
		log.Error().Err(err).Str("body_preview", string(body[:min(len(body), 200)])).Msg("Failed to parse response JSON")
		return &ServiceError{StatusCode: http.StatusBadGateway, Err: err}
	}
	return nil
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer closeResponseBody(resp)
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read response body")
		return nil, err
	}
	return body, nil
}

func closeResponseBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		log.Debug().Err(err).Msg("Failed to close response body")
	}
}

func transportError(err error) *ServiceError {
	status := http.StatusBadGateway
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		status = http.StatusGatewayTimeout
	}
	return &ServiceError{StatusCode: status, Err: err}
}
