package webhooks

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goliatone/go-delivery/core"
)

// HTTPSender performs one signed webhook attempt over a transport adapter,
// normally the resilience-wrapped REST adapter. It never retries on its own;
// attempt scheduling belongs to the dispatcher.
type HTTPSender struct {
	Adapter        core.TransportAdapter
	Secrets        core.SecretStore
	Signer         Signer
	DefaultTimeout time.Duration
	Now            func() time.Time
}

func NewHTTPSender(adapter core.TransportAdapter, secrets core.SecretStore) (*HTTPSender, error) {
	if adapter == nil {
		return nil, fmt.Errorf("webhooks: transport adapter is required")
	}
	if secrets == nil {
		return nil, fmt.Errorf("webhooks: secret store is required")
	}
	return &HTTPSender{
		Adapter:        adapter,
		Secrets:        secrets,
		Signer:         NewSigner(),
		DefaultTimeout: 10 * time.Second,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *HTTPSender) Send(ctx context.Context, req core.WebhookSendRequest) (core.WebhookSendResult, error) {
	if s == nil || s.Adapter == nil || s.Secrets == nil {
		return core.WebhookSendResult{}, fmt.Errorf("webhooks: sender is not configured")
	}
	if err := req.Endpoint.Validate(); err != nil {
		return core.WebhookSendResult{}, err
	}

	secret, err := s.Secrets.GetSecret(ctx, req.Endpoint.SecretRef)
	if err != nil {
		return core.WebhookSendResult{}, fmt.Errorf("webhooks: secret resolve failed for %q: %w", req.Endpoint.SecretRef, err)
	}

	payload := NewWirePayload(req.Event, req.Delivery, req.Attempt)
	body, err := payload.MarshalCanonical()
	if err != nil {
		return core.WebhookSendResult{}, err
	}

	timestamp := s.now().Unix()
	headers := s.Signer.SignedHeaders(secret, timestamp, body, payload)

	timeout := req.Endpoint.Timeout
	if timeout <= 0 {
		timeout = s.DefaultTimeout
	}

	response, err := s.Adapter.Do(ctx, core.TransportRequest{
		Method:      http.MethodPost,
		URL:         req.Endpoint.URL,
		Headers:     headers,
		Body:        body,
		Timeout:     timeout,
		Idempotency: req.Delivery.ID,
	})
	if err != nil {
		return core.WebhookSendResult{StatusCode: response.StatusCode}, err
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return core.WebhookSendResult{StatusCode: response.StatusCode}, formatStatusError(response.StatusCode)
	}
	return core.WebhookSendResult{StatusCode: response.StatusCode}, nil
}

func (s *HTTPSender) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

var _ core.WebhookSender = (*HTTPSender)(nil)
