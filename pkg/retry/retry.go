// ABOUTME: Retry with exponential backoff for calendar provider calls
// ABOUTME: Retries rate limits (429) and server errors (5xx), never other 4xx

package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/api/googleapi"
)

// HTTPError is implemented by errors that carry an HTTP status code
type HTTPError interface {
	error
	HTTPStatusCode() int
}

// Policy bounds how often and how long an operation is retried
type Policy struct {
	// MaxRetries excludes the initial attempt. Negative values mean no retries.
	MaxRetries int
	// BaseDelay doubles after every failed attempt
	BaseDelay time.Duration
	// MaxDelay caps a single wait when positive
	MaxDelay time.Duration
}

// DefaultPolicy is used for provider calls
var DefaultPolicy = Policy{
	MaxRetries: 3,
	BaseDelay:  500 * time.Millisecond,
	MaxDelay:   8 * time.Second,
}

// WithRetry runs operation until it succeeds, fails with a non-retryable
// error, runs out of retries, or ctx is done.
func WithRetry(ctx context.Context, operation func() error, maxRetries int, baseDelay time.Duration) error {
	return Policy{MaxRetries: maxRetries, BaseDelay: baseDelay}.Do(ctx, operation)
}

// Do runs operation under the policy. The last operation error is returned
// when retries are exhausted; ctx.Err() is returned if ctx ends first.
func (p Policy) Do(ctx context.Context, operation func() error) error {
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == maxRetries || !shouldRetry(err) {
			break
		}

		timer := time.NewTimer(p.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// delay returns BaseDelay * 2^attempt, clamped to MaxDelay and never negative
func (p Policy) delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay << uint(attempt)
	if d <= 0 || (p.MaxDelay > 0 && d > p.MaxDelay) {
		if p.MaxDelay > 0 {
			return p.MaxDelay
		}
		return time.Duration(1<<63 - 1)
	}
	return d
}

// StatusCode extracts an HTTP status from err, looking through wrapping.
// Both HTTPError implementations and Google API errors are recognized.
func StatusCode(err error) (int, bool) {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.HTTPStatusCode(), true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	return 0, false
}

// shouldRetry determines if an error is retryable
func shouldRetry(err error) bool {
	code, ok := StatusCode(err)
	if !ok {
		return false
	}
	return code == 429 || (code >= 500 && code < 600)
}

// RetryableError wraps an HTTP status code as an error
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP %d error", e.StatusCode)
}

func (e *RetryableError) HTTPStatusCode() int {
	return e.StatusCode
}

// NewRetryableError creates an error carrying statusCode
func NewRetryableError(statusCode int, message string) *RetryableError {
	return &RetryableError{
		StatusCode: statusCode,
		Message:    message,
	}
}
