package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-delivery/core"
)

type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt, so a
	// value of 3 allows four attempts total.
	MaxRetries int
	BaseDelay  time.Duration
	Factor     float64
	MaxDelay   time.Duration
	// JitterFraction spreads each delay by +/- this fraction.
	JitterFraction float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		BaseDelay:      500 * time.Millisecond,
		Factor:         2,
		MaxDelay:       30 * time.Second,
		JitterFraction: 0.05,
	}
}

// ExhaustedError reports that every allowed attempt failed with a retryable
// outcome. It unwraps to the last attempt's error.
type ExhaustedError struct {
	Attempts   int
	LastStatus int
	Err        error
}

func (e ExhaustedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resilience: %d attempts exhausted, last error: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("resilience: %d attempts exhausted, last status %d", e.Attempts, e.LastStatus)
}

func (e ExhaustedError) Unwrap() error {
	return e.Err
}

type retryableMarker struct {
	err error
}

func (m retryableMarker) Error() string { return m.err.Error() }
func (m retryableMarker) Unwrap() error { return m.err }

// MarkRetryable flags an error so the retryer treats it as transient even
// when it is not a network error.
func MarkRetryable(err error) error {
	if err == nil {
		return nil
	}
	return retryableMarker{err: err}
}

func isMarkedRetryable(err error) bool {
	var marker retryableMarker
	return errors.As(err, &marker)
}

// IsRetryableStatus reports whether a response status should be retried:
// request timeout, throttling, and all server errors.
func IsRetryableStatus(statusCode int) bool {
	return statusCode == http.StatusRequestTimeout ||
		statusCode == http.StatusTooManyRequests ||
		statusCode >= http.StatusInternalServerError
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if isMarkedRetryable(err) {
		return true
	}
	// A fired per-attempt deadline surfaces as a net.Error timeout and gets
	// another try. Whether the caller's own context is done is Execute's
	// call, not ours.
	var netErr net.Error
	return errors.As(err, &netErr)
}

type Retryer struct {
	config RetryConfig

	randFloat func() float64
	sleep     func(ctx context.Context, delay time.Duration) error
}

func NewRetryer(config RetryConfig) (*Retryer, error) {
	if config.MaxRetries < 0 {
		return nil, fmt.Errorf("resilience: max retries must be >= 0")
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = DefaultRetryConfig().BaseDelay
	}
	if config.Factor < 1 {
		config.Factor = DefaultRetryConfig().Factor
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = DefaultRetryConfig().MaxDelay
	}
	if config.JitterFraction < 0 || config.JitterFraction >= 1 {
		config.JitterFraction = DefaultRetryConfig().JitterFraction
	}
	return &Retryer{
		config:    config,
		randFloat: rand.Float64,
		sleep:     sleepWithContext,
	}, nil
}

// Execute runs fn up to MaxRetries+1 times. Network errors, flagged errors,
// and retryable statuses trigger another attempt; anything else returns
// immediately. A failed attempt after the caller's context is done is never
// retried. Exhaustion yields an ExhaustedError alongside the last response.
func (r *Retryer) Execute(ctx context.Context, fn func(ctx context.Context) (core.TransportResponse, error)) (core.TransportResponse, error) {
	if r == nil || fn == nil {
		return core.TransportResponse{}, fmt.Errorf("resilience: retryer requires a call function")
	}

	attempts := r.config.MaxRetries + 1
	var lastResponse core.TransportResponse
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		response, err := fn(ctx)
		lastResponse = response
		lastErr = err

		if err != nil {
			if ctx.Err() != nil || !isRetryableError(err) {
				return response, err
			}
		} else if !IsRetryableStatus(response.StatusCode) {
			return response, nil
		}

		if attempt == attempts {
			break
		}
		delay := r.NextDelay(attempt, retryAfterHint(response))
		if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
			return lastResponse, sleepErr
		}
	}

	return lastResponse, ExhaustedError{
		Attempts:   attempts,
		LastStatus: lastResponse.StatusCode,
		Err:        lastErr,
	}
}

// NextDelay computes the pause before the next attempt: exponential growth
// floored by the server's retry-after hint, capped, then jittered.
func (r *Retryer) NextDelay(attempt int, retryAfter time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(float64(r.config.BaseDelay) * math.Pow(r.config.Factor, float64(attempt-1)))
	if delay < 0 {
		delay = r.config.MaxDelay
	}
	if retryAfter > delay {
		delay = retryAfter
	}
	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}
	if r.config.JitterFraction > 0 {
		spread := (r.randFloat()*2 - 1) * r.config.JitterFraction
		delay = time.Duration(float64(delay) * (1 + spread))
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

func retryAfterHint(response core.TransportResponse) time.Duration {
	raw := ""
	for key, value := range response.Headers {
		if strings.EqualFold(strings.TrimSpace(key), "retry-after") {
			raw = strings.TrimSpace(value)
			break
		}
	}
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if retryAt, err := time.Parse(time.RFC1123, raw); err == nil {
		if until := time.Until(retryAt); until > 0 {
			return until
		}
	}
	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
