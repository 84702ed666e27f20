package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
)

var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable after retries")
	ErrRateLimited         = errors.New("upstream rate limit exceeded")
	ErrCircuitOpen         = errors.New("circuit breaker is open")
	ErrUnexpectedStatus    = errors.New("unexpected response status")
)

const DefaultUserAgent = "go-forecast-pipeline/1.0"

// RetryPolicy configures the retry behavior of the download client
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		MinWait:    500 * time.Millisecond,
		MaxWait:    10 * time.Second,
	}
}

// Client downloads documents over HTTP behind a circuit breaker, retrying transport errors,
// 429 and 5xx responses with exponential backoff
type Client struct {
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[[]byte]
	retryPolicy RetryPolicy
	userAgent   string
	sleepFn     func(time.Duration)
}

type ClientOption func(*Client)

// WithSleepFunc overrides the sleep between retries
func WithSleepFunc(fn func(time.Duration)) ClientOption {
	return func(c *Client) {
		c.sleepFn = fn
	}
}

func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retryPolicy = p
	}
}

// NewClient creates a download client. A nil http client uses one with a 30 second timeout.
func NewClient(httpClient *http.Client, opts ...ClientOption) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "download",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	c := &Client{
		client:      httpClient,
		breaker:     cb,
		retryPolicy: DefaultRetryPolicy(),
		userAgent:   DefaultUserAgent,
		sleepFn:     time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// statusError carries the status of a failed attempt through the breaker
type statusError struct {
	code       int
	retryAfter string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("upstream returned %d", e.code)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

// Get downloads the body of url. Non-retryable statuses are returned immediately.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	maxAttempts := 1 + c.retryPolicy.MaxRetries
	for attempt := 0; attempt < maxAttempts; attempt++ {
		body, err := c.breaker.Execute(func() ([]byte, error) {
			return c.do(ctx, url)
		})
		if err == nil {
			return body, nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s, %w", url, ErrCircuitOpen)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var retryAfter string
		var se *statusError
		if errors.As(err, &se) {
			if !se.retryable() {
				return nil, fmt.Errorf("%s returned %d, %w", url, se.code, ErrUnexpectedStatus)
			}
			retryAfter = se.retryAfter
		}

		if attempt < maxAttempts-1 {
			c.sleepFn(c.computeBackoff(attempt, retryAfter))
		}
	}

	var se *statusError
	if errors.As(lastErr, &se) && se.code == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%s, %w", url, ErrRateLimited)
	}
	return nil, fmt.Errorf("%s, %w: %w", url, ErrUpstreamUnavailable, lastErr)
}

func (c *Client) do(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to create request, %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// drain so the connection can be reused
		io.Copy(io.Discard, resp.Body)
		return nil, &statusError{code: resp.StatusCode, retryAfter: resp.Header.Get("Retry-After")}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read response body, %w", err)
	}
	return body, nil
}

// computeBackoff respects a Retry-After in seconds and otherwise doubles the wait per attempt
// clamped to [MinWait, MaxWait]
func (c *Client) computeBackoff(attempt int, retryAfter string) time.Duration {
	if retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
			return min(time.Duration(seconds)*time.Second, c.retryPolicy.MaxWait)
		}
	}

	wait := time.Duration(float64(c.retryPolicy.MinWait) * math.Pow(2, float64(attempt)))
	return max(min(wait, c.retryPolicy.MaxWait), c.retryPolicy.MinWait)
}
