package gamma

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// HTTPClientConfig holds configuration for HTTP clients
type HTTPClientConfig struct {
	Timeout           time.Duration
	MaxRetries        int
	RetryWaitMin      time.Duration
	RetryWaitMax      time.Duration
	RateLimit         float64 // requests per second
	CircuitBreakerMax int     // max consecutive failures before circuit break
}

// DefaultHTTPClientConfig returns recommended defaults
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:           15 * time.Second,
		MaxRetries:        3,
		RetryWaitMin:      100 * time.Millisecond,
		RetryWaitMax:      10 * time.Second,
		RateLimit:         5.0,
		CircuitBreakerMax: 5,
	}
}

// RateLimitedHTTPClient wraps retryablehttp.Client with rate limiting and circuit breaker
type RateLimitedHTTPClient struct {
	client            *retryablehttp.Client
	limiter           *rate.Limiter
	circuitBreakerMax int
	logger            *logrus.Logger

	// One client is shared by the scan, exit, and retune goroutines;
	// mu guards the breaker state.
	mu                sync.Mutex
	consecutiveErrors int
	isOpen            bool
	lastError         error
}

// NewRateLimitedHTTPClient creates a new rate-limited HTTP client
func NewRateLimitedHTTPClient(cfg HTTPClientConfig, logger *logrus.Logger) *RateLimitedHTTPClient {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.CheckRetry = customRetryPolicy()

	// Don't log verbose retry info
	retryClient.Logger = nil

	return &RateLimitedHTTPClient{
		client:            retryClient,
		limiter:           rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		circuitBreakerMax: cfg.CircuitBreakerMax,
		logger:            logger,
	}
}

// Do executes an HTTP request with rate limiting and circuit breaker
func (c *RateLimitedHTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.breakerOpenErr(); err != nil {
		return nil, err
	}

	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	retryReq, err := retryablehttp.FromRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap request: %w", err)
	}
	retryReq = retryReq.WithContext(ctx)

	resp, err := c.client.Do(retryReq)
	if err != nil {
		c.recordFailure(err)
		return nil, err
	}

	if resp.StatusCode < 500 {
		c.recordSuccess()
	}

	return resp, nil
}

// breakerOpenErr reports the open breaker with its last error.
func (c *RateLimitedHTTPClient) breakerOpenErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isOpen {
		return fmt.Errorf("circuit breaker open: %v", c.lastError)
	}
	return nil
}

func (c *RateLimitedHTTPClient) recordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveErrors++
	c.lastError = err
	if !c.isOpen && c.consecutiveErrors >= c.circuitBreakerMax {
		c.isOpen = true
		c.logger.WithFields(logrus.Fields{
			"consecutive_errors": c.consecutiveErrors,
			"error":              err.Error(),
		}).Warn("Circuit breaker opened")
	}
}

func (c *RateLimitedHTTPClient) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveErrors = 0
	c.isOpen = false
}

// Get executes a GET request
func (c *RateLimitedHTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, req)
}

// Close closes any resources held by the client
func (c *RateLimitedHTTPClient) Close() error {
	c.client.HTTPClient.CloseIdleConnections()
	return nil
}

// customRetryPolicy defines which HTTP responses should trigger a retry
func customRetryPolicy() retryablehttp.CheckRetry {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if err != nil {
			// Retry on network errors
			return true, err
		}

		// Never retry auth failures
		if resp.StatusCode == 401 || resp.StatusCode == 403 {
			return false, nil
		}

		// Retry on rate limit (429) and server errors
		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			return true, nil
		}

		return false, nil
	}
}
