package delivery

import (
	"github.com/goliatone/go-delivery/core"
	"github.com/goliatone/go-delivery/ratelimit"
	"github.com/goliatone/go-delivery/resilience"
	"github.com/goliatone/go-delivery/security"
	"github.com/goliatone/go-delivery/transport"
	"github.com/goliatone/go-delivery/webhooks"
)

// RESTTransport builds the default HTTP transport adapter. A nil client uses
// a timeout-bounded http.Client.
func RESTTransport(client transport.HTTPDoer) core.TransportAdapter {
	return transport.NewRESTAdapter(client)
}

// DryRunTransport builds an adapter that accepts every webhook without
// touching the network, for rehearsing the pipeline against real data.
func DryRunTransport() *transport.DryRunAdapter {
	return transport.NewDryRunAdapter()
}

// MemoryEventTransport builds an in-process event transport, useful for tests
// and single-process deployments without a broker.
func MemoryEventTransport(capacity int) *transport.MemoryTransport {
	return transport.NewMemoryTransport(capacity)
}

// NoopEventTransport builds a transport that acknowledges every publish.
func NoopEventTransport() core.EventTransport {
	return transport.NewNoopTransport()
}

// StaticSecrets builds a secret store backed by configuration values.
func StaticSecrets(secrets map[string]string) *security.StaticSecretStore {
	return security.NewStaticSecretStore(secrets)
}

// EnvSecrets builds a secret store resolving refs against the process
// environment.
func EnvSecrets(opts ...security.EnvOption) core.SecretStore {
	return security.NewEnvSecretStore(opts...)
}

// SignedSender builds the HMAC-signing webhook sender over a transport
// adapter, typically a ResilientTransport.
func SignedSender(adapter core.TransportAdapter, secrets core.SecretStore) (core.WebhookSender, error) {
	return webhooks.NewHTTPSender(adapter, secrets)
}

// ResilientTransport wraps an adapter with token-bucket admission, per-host
// circuit breakers, and bounded retries.
func ResilientTransport(
	adapter core.TransportAdapter,
	limit ratelimit.Config,
	retry resilience.RetryConfig,
	breaker resilience.BreakerConfig,
) (core.TransportAdapter, error) {
	bucket, err := ratelimit.NewTokenBucket(limit)
	if err != nil {
		return nil, err
	}
	retryer, err := resilience.NewRetryer(retry)
	if err != nil {
		return nil, err
	}
	return resilience.NewClient(
		adapter,
		resilience.WithLimiter(bucket),
		resilience.WithRetryer(retryer),
		resilience.WithBreakerRegistry(resilience.NewBreakerRegistry(breaker)),
	)
}
