// Package ratelimit provides the client-side token bucket that paces
// outbound calls per endpoint host.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-delivery/core"
	goerrors "github.com/goliatone/go-errors"
)

type ThrottledError struct {
	Scope      string
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf(
		"ratelimit: scope %q throttled for %s",
		strings.TrimSpace(e.Scope),
		e.RetryAfter,
	)
}

func (e ThrottledError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{
		"scope": strings.TrimSpace(e.Scope),
	}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.DeliveryErrorRateLimited).
		WithMetadata(metadata)
}

type Config struct {
	// Scope labels throttle errors, typically the endpoint host.
	Scope             string
	RequestsPerMinute int
	// Burst extends capacity above the per-window refill amount.
	Burst int
	// QueueSize bounds how many callers may wait for a refill. Zero means
	// callers never wait.
	QueueSize    int
	MaxQueueWait time.Duration
	// Window is the refill period. Tokens arrive in whole-window quanta,
	// not continuously.
	Window time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		Burst:             0,
		QueueSize:         0,
		MaxQueueWait:      30 * time.Second,
		Window:            time.Minute,
	}
}

type waiter struct {
	done chan error
}

// TokenBucket is a quantized-refill token bucket. The bucket starts full at
// RequestsPerMinute+Burst tokens and gains RequestsPerMinute tokens at each
// window boundary. Waiting callers are served strictly FIFO.
type TokenBucket struct {
	config Config

	mu           sync.Mutex
	tokens       int
	lastRefillAt time.Time
	waiters      []*waiter

	now func() time.Time
}

func NewTokenBucket(config Config) (*TokenBucket, error) {
	if config.RequestsPerMinute <= 0 {
		return nil, fmt.Errorf("ratelimit: requests per minute must be positive")
	}
	if config.Burst < 0 {
		return nil, fmt.Errorf("ratelimit: burst must be >= 0")
	}
	if config.QueueSize < 0 {
		return nil, fmt.Errorf("ratelimit: queue size must be >= 0")
	}
	if config.MaxQueueWait <= 0 {
		config.MaxQueueWait = DefaultConfig().MaxQueueWait
	}
	if config.Window <= 0 {
		config.Window = DefaultConfig().Window
	}

	bucket := &TokenBucket{
		config: config,
		tokens: config.RequestsPerMinute + config.Burst,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	bucket.lastRefillAt = bucket.now()
	return bucket, nil
}

func (b *TokenBucket) capacity() int {
	return b.config.RequestsPerMinute + b.config.Burst
}

// TryAcquire takes a token without waiting. On rejection it returns a
// ThrottledError whose RetryAfter points at the next refill boundary.
func (b *TokenBucket) TryAcquire() error {
	if b == nil {
		return fmt.Errorf("ratelimit: bucket is not configured")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.refillLocked(now)
	if b.tokens > 0 && len(b.waiters) == 0 {
		b.tokens--
		return nil
	}
	return ThrottledError{Scope: b.config.Scope, RetryAfter: b.retryAfterLocked(now)}
}

// Acquire takes a token, queueing up to QueueSize callers for at most
// MaxQueueWait. Queue admission is decided at call time; a full queue
// rejects immediately.
func (b *TokenBucket) Acquire(ctx context.Context) error {
	if b == nil {
		return fmt.Errorf("ratelimit: bucket is not configured")
	}

	b.mu.Lock()
	now := b.now()
	b.refillLocked(now)
	if b.tokens > 0 && len(b.waiters) == 0 {
		b.tokens--
		b.mu.Unlock()
		return nil
	}
	if len(b.waiters) >= b.config.QueueSize {
		retryAfter := b.retryAfterLocked(now)
		b.mu.Unlock()
		return ThrottledError{Scope: b.config.Scope, RetryAfter: retryAfter}
	}
	w := &waiter{done: make(chan error, 1)}
	b.waiters = append(b.waiters, w)
	deadline := now.Add(b.config.MaxQueueWait)
	b.mu.Unlock()

	for {
		waitTimer := time.NewTimer(time.Until(deadline))
		wakeTimer := time.NewTimer(b.untilNextRefill())

		select {
		case err := <-w.done:
			waitTimer.Stop()
			wakeTimer.Stop()
			return err
		case <-ctx.Done():
			waitTimer.Stop()
			wakeTimer.Stop()
			b.abandon(w, true)
			return ctx.Err()
		case <-waitTimer.C:
			wakeTimer.Stop()
			if granted := b.abandon(w, false); granted {
				return nil
			}
			b.mu.Lock()
			retryAfter := b.retryAfterLocked(b.now())
			b.mu.Unlock()
			return ThrottledError{Scope: b.config.Scope, RetryAfter: retryAfter}
		case <-wakeTimer.C:
			waitTimer.Stop()
			b.dispatch()
		}
	}
}

// DrainQueue rejects every queued caller with a ThrottledError. Use it when
// shutting the pipeline down so waiters fail fast instead of timing out.
func (b *TokenBucket) DrainQueue() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	retryAfter := b.retryAfterLocked(b.now())
	drained := len(b.waiters)
	for _, w := range b.waiters {
		w.done <- ThrottledError{Scope: b.config.Scope, RetryAfter: retryAfter}
	}
	b.waiters = nil
	return drained
}

type Stats struct {
	Tokens       int
	Capacity     int
	QueueDepth   int
	NextRefillAt time.Time
}

func (b *TokenBucket) Stats() Stats {
	if b == nil {
		return Stats{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(b.now())
	return Stats{
		Tokens:       b.tokens,
		Capacity:     b.capacity(),
		QueueDepth:   len(b.waiters),
		NextRefillAt: b.lastRefillAt.Add(b.config.Window),
	}
}

// refillLocked advances the bucket through whole elapsed windows. Partial
// windows contribute nothing, which keeps retry-after hints aligned to
// window boundaries.
func (b *TokenBucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastRefillAt)
	if elapsed < b.config.Window {
		return
	}
	cycles := int(elapsed / b.config.Window)
	b.tokens += cycles * b.config.RequestsPerMinute
	if b.tokens > b.capacity() {
		b.tokens = b.capacity()
	}
	b.lastRefillAt = b.lastRefillAt.Add(time.Duration(cycles) * b.config.Window)
}

func (b *TokenBucket) retryAfterLocked(now time.Time) time.Duration {
	retryAfter := b.lastRefillAt.Add(b.config.Window).Sub(now)
	if retryAfter <= 0 {
		return b.config.Window
	}
	return retryAfter
}

func (b *TokenBucket) untilNextRefill() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	b.refillLocked(now)
	until := b.lastRefillAt.Add(b.config.Window).Sub(now)
	if until <= 0 {
		until = time.Millisecond
	}
	return until
}

// dispatch refills and hands tokens to queued callers in FIFO order.
func (b *TokenBucket) dispatch() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(b.now())
	b.dispatchLocked()
}

func (b *TokenBucket) dispatchLocked() {
	for b.tokens > 0 && len(b.waiters) > 0 {
		w := b.waiters[0]
		b.waiters = b.waiters[1:]
		b.tokens--
		w.done <- nil
	}
}

// abandon removes a waiter from the queue. When a grant raced the removal,
// reclaim controls whether the token goes back to the bucket or the caller
// keeps it; abandon reports true only when the caller keeps a granted token.
func (b *TokenBucket) abandon(w *waiter, reclaim bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, queued := range b.waiters {
		if queued == w {
			b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
			return false
		}
	}

	// Not in the queue anymore, so a grant or drain raced the removal.
	select {
	case err := <-w.done:
		if err != nil {
			return false
		}
		if reclaim {
			b.tokens++
			b.dispatchLocked()
			return false
		}
		return true
	default:
		return false
	}
}
