package resilience

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-delivery/core"
)

// Limiter is the admission control surface the client pays before any
// breaker or transport work happens.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Client wraps a transport adapter with limiter, per-host breaker, and
// retry layers.
type Client struct {
	adapter  core.TransportAdapter
	limiter  Limiter
	breakers *BreakerRegistry
	retryer  *Retryer
}

type ClientOption func(*Client)

func WithLimiter(limiter Limiter) ClientOption {
	return func(c *Client) {
		c.limiter = limiter
	}
}

func WithBreakerRegistry(registry *BreakerRegistry) ClientOption {
	return func(c *Client) {
		c.breakers = registry
	}
}

func WithRetryer(retryer *Retryer) ClientOption {
	return func(c *Client) {
		c.retryer = retryer
	}
}

func NewClient(adapter core.TransportAdapter, options ...ClientOption) (*Client, error) {
	if adapter == nil {
		return nil, fmt.Errorf("resilience: transport adapter is required")
	}
	client := &Client{adapter: adapter}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(client)
	}
	if client.retryer == nil {
		retryer, err := NewRetryer(DefaultRetryConfig())
		if err != nil {
			return nil, err
		}
		client.retryer = retryer
	}
	if client.breakers == nil {
		client.breakers = NewBreakerRegistry(DefaultBreakerConfig())
	}
	return client, nil
}

func (c *Client) Kind() string {
	if c == nil || c.adapter == nil {
		return "resilient"
	}
	return "resilient+" + c.adapter.Kind()
}

// Do pays the limiter, then runs the full retry loop inside the breaker so
// one exhausted run counts as one breaker failure.
func (c *Client) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if c == nil || c.adapter == nil {
		return core.TransportResponse{}, fmt.Errorf("resilience: client is not configured")
	}

	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx); err != nil {
			return core.TransportResponse{}, err
		}
	}

	execute := func() (core.TransportResponse, error) {
		return c.retryer.Execute(ctx, func(ctx context.Context) (core.TransportResponse, error) {
			return c.adapter.Do(ctx, req)
		})
	}

	if c.breakers == nil {
		return execute()
	}
	breaker := c.breakers.GetOrCreate(hostOf(req.URL))
	return breaker.Execute(execute)
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return "default"
	}
	return strings.ToLower(parsed.Host)
}

var _ core.TransportAdapter = (*Client)(nil)
