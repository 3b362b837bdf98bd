package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default HTTP adapter configuration values.
const (
	DefaultTimeout     = 15 * time.Second
	DefaultMaxRetries  = 2
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	DefaultBackoffMult = 2.0
)

// httpDoer performs GET requests with retries and exponential backoff.
// Retries cover transport errors and 5xx responses; 4xx responses are
// returned to the caller immediately.
type httpDoer struct {
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

func newHTTPDoer() *httpDoer {
	return &httpDoer{
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
}

// HTTPOption configures an HTTP-backed adapter.
type HTTPOption func(*httpDoer)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *httpDoer) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) HTTPOption {
	return func(c *httpDoer) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets the initial retry delay.
func WithRetryDelay(d time.Duration) HTTPOption {
	return func(c *httpDoer) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(c *httpDoer) {
		c.client = client
	}
}

// getJSON fetches url and decodes the response body into out.
// Returns the final HTTP status code alongside any error.
func (d *httpDoer) getJSON(ctx context.Context, url string, headers map[string]string, out any) (int, error) {
	delay := d.retryDelay
	var lastErr error
	lastStatus := 0

	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return lastStatus, ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * d.backoffMult)
			if delay > d.maxDelay {
				delay = d.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := d.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http get: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		lastStatus = resp.StatusCode
		if err != nil {
			lastErr = fmt.Errorf("read body: %w", err)
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: status %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
		return resp.StatusCode, nil
	}

	return lastStatus, lastErr
}

// codeForStatus maps an HTTP status to a provider error code.
func codeForStatus(status int, err error) ErrorCode {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrCodeRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrCodeAuth
	case status >= 400 && status < 500:
		return ErrCodeBadPayload
	case err != nil:
		return ErrCodeNetwork
	default:
		return ErrCodeNetwork
	}
}
