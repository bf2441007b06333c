package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// Default configuration values.
const (
	DefaultTimeout       = 10 * time.Second
	DefaultMaxRetries    = 4
	DefaultRetryInterval = 500 * time.Millisecond
)

// HTTPClient is the shared upstream HTTP client. Transient failures (network
// errors, 429, 5xx) are retried with exponential backoff; a circuit breaker
// stops hammering an upstream that keeps failing.
type HTTPClient struct {
	client        *http.Client
	maxRetries    uint64
	retryInterval time.Duration
	breaker       *gobreaker.CircuitBreaker
}

// HTTPClientOption configures HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n uint64) HTTPClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryInterval sets the initial backoff interval.
func WithRetryInterval(d time.Duration) HTTPClientOption {
	return func(c *HTTPClient) {
		c.retryInterval = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) HTTPClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a shared upstream client.
func NewHTTPClient(name string, opts ...HTTPClientOption) *HTTPClient {
	c := &HTTPClient{
		client:        &http.Client{Timeout: DefaultTimeout},
		maxRetries:    DefaultMaxRetries,
		retryInterval: DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return c
}

// retryableError marks an error as worth retrying.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// GetJSON fetches url and decodes the response body into result.
func (c *HTTPClient) GetJSON(ctx context.Context, url string, result interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.getWithRetry(ctx, url, result)
	})
	return err
}

func (c *HTTPClient) getWithRetry(ctx context.Context, url string, result interface{}) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInterval

	operation := func() error {
		err := c.get(ctx, url, result)
		if err == nil {
			return nil
		}
		var retryable *retryableError
		if errors.As(err, &retryable) {
			return err
		}
		return backoff.Permanent(err)
	}

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx))
}

func (c *HTTPClient) get(ctx context.Context, url string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &retryableError{err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}
