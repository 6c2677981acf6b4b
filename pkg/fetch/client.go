package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"
)

const (
	defaultMaxRetries  = 3
	defaultRetryBase   = 2 * time.Second
	defaultRetryCap    = 30 * time.Second
	maxRetryJitter     = 500 * time.Millisecond
	defaultTimeout     = 120 * time.Second
	defaultRetryAfter  = 60 * time.Second
	userAgent         = "bgp-gateway/1.0 (https://github.com/hervehildenbrand/bgp-gateway)"
)

// HTTPError is a non-retryable upstream response (4xx other than 429).
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream returned %d for %s", e.StatusCode, e.URL)
}

// Client issues JSON GET requests against one upstream service with a
// shared token-bucket limiter, bounded retries, and cancellation.
//
// Failure classes: 429 pauses the limiter and the same request is retried;
// other 4xx fail immediately with *HTTPError; 5xx and network errors are
// retried with exponential backoff plus jitter before being surfaced.
// Context cancellation is propagated as-is and never retried.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Limiter    *RateLimiter
	MaxRetries int
	RetryBase  time.Duration
	RetryCap   time.Duration
	Timeout    time.Duration

	// Stats
	requests uint64
	retries  uint64
	failures uint64
}

// NewClient creates a client for the given service base URL. The limiter
// may be shared with other clients to bound the combined request rate.
func NewClient(baseURL string, limiter *RateLimiter) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{},
		Limiter:    limiter,
		MaxRetries: defaultMaxRetries,
		RetryBase:  defaultRetryBase,
		RetryCap:   defaultRetryCap,
		Timeout:    defaultTimeout,
	}
}

// GetJSON fetches path with the given query parameters and decodes the
// response body into out.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	fullURL := c.BaseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	for attempt := 0; ; attempt++ {
		if err := c.Limiter.Acquire(ctx); err != nil {
			return err
		}

		body, status, err := c.doRequest(ctx, fullURL)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Network-level failure: transient.
			if attempt < c.MaxRetries {
				atomic.AddUint64(&c.retries, 1)
				if werr := c.backoff(ctx, attempt); werr != nil {
					return werr
				}
				continue
			}
			atomic.AddUint64(&c.failures, 1)
			return fmt.Errorf("request failed after %d attempts: %w", attempt+1, err)
		}

		switch {
		case status == http.StatusTooManyRequests:
			// Absorbed by the limiter, not counted as a retry attempt.
			c.Limiter.Pause(time.Now().Add(retryAfterDelay(body.header)))
			continue

		case status >= 400 && status < 500:
			atomic.AddUint64(&c.failures, 1)
			return &HTTPError{StatusCode: status, URL: fullURL}

		case status >= 500:
			if attempt < c.MaxRetries {
				atomic.AddUint64(&c.retries, 1)
				if werr := c.backoff(ctx, attempt); werr != nil {
					return werr
				}
				continue
			}
			atomic.AddUint64(&c.failures, 1)
			return fmt.Errorf("request failed after %d attempts: upstream returned %d", attempt+1, status)
		}

		if err := json.Unmarshal(body.data, out); err != nil {
			atomic.AddUint64(&c.failures, 1)
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
}

type responseBody struct {
	data   []byte
	header http.Header
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (responseBody, int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, fullURL, nil)
	if err != nil {
		return responseBody{}, 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	atomic.AddUint64(&c.requests, 1)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return responseBody{}, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return responseBody{}, 0, err
	}
	return responseBody{data: data, header: resp.Header}, resp.StatusCode, nil
}

func (c *Client) backoff(ctx context.Context, attempt int) error {
	delay := c.RetryBase << uint(attempt)
	if delay > c.RetryCap {
		delay = c.RetryCap
	}
	delay += time.Duration(rand.Int63n(int64(maxRetryJitter)))
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsPermanent reports whether err is a non-retryable upstream failure.
func IsPermanent(err error) bool {
	var he *HTTPError
	return errors.As(err, &he)
}

// Stats returns request counters.
func (c *Client) Stats() map[string]interface{} {
	return map[string]interface{}{
		"requests": atomic.LoadUint64(&c.requests),
		"retries":  atomic.LoadUint64(&c.retries),
		"failures": atomic.LoadUint64(&c.failures),
	}
}

func retryAfterDelay(h http.Header) time.Duration {
	if h == nil {
		return defaultRetryAfter
	}
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultRetryAfter
}
