// Package fetch retrieves the external documents that sub-child rules merge
// into or substitute for target fields.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/edtacey/jsonmapper/internal/document"
)

// Config configures a Client.
type Config struct {
	// Timeout for one request attempt (default: 5s).
	Timeout time.Duration

	// MaxRetries for 429, 5xx and transport failures (default: 2).
	// Negative disables retries.
	MaxRetries int

	// RateLimit requests per second (default: 10).
	RateLimit float64

	// RateBurst maximum burst size (default: 5).
	RateBurst int

	// Backoff before the first retry, doubled per attempt (default: 100ms).
	Backoff time.Duration

	// Headers to add to all requests.
	Headers map[string]string

	// UserAgent string (default: "jsonmapper/1.0").
	UserAgent string

	// Transport allows injecting a custom HTTP transport (for tests/stubs).
	Transport http.RoundTripper
}

// DefaultConfig returns a config with the defaults applied.
func DefaultConfig() Config {
	return Config{
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		RateLimit:  10,
		RateBurst:  5,
		Backoff:    100 * time.Millisecond,
		UserAgent:  "jsonmapper/1.0",
	}
}

// Client is a rate-limited, retrying JSON fetcher. It implements
// engine.Fetcher.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a client; zero config fields take their defaults.
func NewClient(config Config, logger *slog.Logger) *Client {
	def := DefaultConfig()
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = def.MaxRetries
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RateLimit == 0 {
		config.RateLimit = def.RateLimit
	}
	if config.RateBurst == 0 {
		config.RateBurst = def.RateBurst
	}
	if config.Backoff == 0 {
		config.Backoff = def.Backoff
	}
	if config.UserAgent == "" {
		config.UserAgent = def.UserAgent
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: config.Transport,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
		logger:  logger,
	}
}

// Fetch GETs url and decodes the JSON body.
func (c *Client) Fetch(ctx context.Context, url string) (any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		body, err := c.get(ctx, url)
		if err == nil {
			v, err := document.Decode(body)
			if err != nil {
				return nil, fmt.Errorf("fetch %s: decode: %w", url, err)
			}
			return v, nil
		}

		lastErr = err
		if !isRetryable(ctx, err) {
			return nil, err
		}

		backoff := c.config.Backoff << uint(attempt)
		c.logger.Debug("fetch retry", "url", url, "attempt", attempt+1, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url, Message: string(body)}
	}
	return body, nil
}

// HTTPError represents an HTTP error response.
type HTTPError struct {
	StatusCode int
	URL        string
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d: %s", e.URL, e.StatusCode, e.Message)
}

// IsRateLimited returns true if this is a rate limit error.
func (e *HTTPError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsServerError returns true if this is a server error.
func (e *HTTPError) IsServerError() bool {
	return e.StatusCode >= 500
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}

// isRetryable determines if an error should be retried. Transport errors
// are retried unless the context ended.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.IsRateLimited() || httpErr.IsServerError()
	}
	return true
}
