package webhooks

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/goliatone/go-delivery/core"
)

func testEndpoint() core.WebhookEndpoint {
	return core.WebhookEndpoint{
		ID:        "ep_1",
		TenantID:  "tenant_1",
		URL:       "https://hooks.example.com/in",
		SecretRef: "env://WEBHOOK_SECRET",
	}
}

func testEvent() core.OutboxEvent {
	return core.OutboxEvent{
		ID:         "evt_row",
		EventID:    "evt_1",
		EventType:  "invoice.paid",
		TenantID:   "tenant_1",
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Payload:    map[string]any{"invoice_id": "inv-42"},
	}
}

func TestHTTPSender_SendsSignedRequest(t *testing.T) {
	adapter := &captureAdapter{response: core.TransportResponse{StatusCode: 200}}
	sender, err := NewHTTPSender(adapter, staticSecrets{"env://WEBHOOK_SECRET": "whsec_test"})
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	sender.Now = func() time.Time { return time.Unix(1700000000, 0).UTC() }

	result, err := sender.Send(context.Background(), core.WebhookSendRequest{
		Endpoint: testEndpoint(),
		Delivery: core.WebhookDelivery{ID: "del_1", CorrelationID: "corr_1"},
		Event:    testEvent(),
		Attempt:  1,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if result.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", result.StatusCode)
	}

	req := adapter.request
	if req.Method != "POST" || req.URL != "https://hooks.example.com/in" {
		t.Fatalf("unexpected request target: %s %s", req.Method, req.URL)
	}
	if req.Idempotency != "del_1" {
		t.Fatalf("expected delivery id as idempotency key")
	}

	timestamp, err := strconv.ParseInt(req.Headers[HeaderTimestamp], 10, 64)
	if err != nil {
		t.Fatalf("parse timestamp header: %v", err)
	}
	if !NewSigner().VerifySignature("whsec_test", timestamp, req.Body, req.Headers[HeaderSignature]) {
		t.Fatalf("outbound signature must verify against body")
	}
}

func TestHTTPSender_NonSuccessStatusIsError(t *testing.T) {
	adapter := &captureAdapter{response: core.TransportResponse{StatusCode: 503}}
	sender, err := NewHTTPSender(adapter, staticSecrets{"env://WEBHOOK_SECRET": "whsec_test"})
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}

	result, err := sender.Send(context.Background(), core.WebhookSendRequest{
		Endpoint: testEndpoint(),
		Delivery: core.WebhookDelivery{ID: "del_1"},
		Event:    testEvent(),
		Attempt:  1,
	})
	if err == nil {
		t.Fatalf("expected error for 503")
	}
	if result.StatusCode != 503 {
		t.Fatalf("expected status carried in result, got %d", result.StatusCode)
	}
}

func TestHTTPSender_RejectsPlainHTTPEndpoint(t *testing.T) {
	adapter := &captureAdapter{response: core.TransportResponse{StatusCode: 200}}
	sender, err := NewHTTPSender(adapter, staticSecrets{"env://WEBHOOK_SECRET": "whsec_test"})
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}

	endpoint := testEndpoint()
	endpoint.URL = "http://hooks.example.com/in"
	_, err = sender.Send(context.Background(), core.WebhookSendRequest{
		Endpoint: endpoint,
		Delivery: core.WebhookDelivery{ID: "del_1"},
		Event:    testEvent(),
	})
	if !errors.Is(err, core.ErrEndpointURLNotHTTPS) {
		t.Fatalf("expected https error, got %v", err)
	}
	if adapter.calls != 0 {
		t.Fatalf("no request should leave the sender")
	}
}

func TestHTTPSender_SecretResolveFailure(t *testing.T) {
	adapter := &captureAdapter{response: core.TransportResponse{StatusCode: 200}}
	sender, err := NewHTTPSender(adapter, staticSecrets{})
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}

	_, err = sender.Send(context.Background(), core.WebhookSendRequest{
		Endpoint: testEndpoint(),
		Delivery: core.WebhookDelivery{ID: "del_1"},
		Event:    testEvent(),
	})
	if err == nil {
		t.Fatalf("expected secret resolve error")
	}
	if adapter.calls != 0 {
		t.Fatalf("no request should leave the sender")
	}
}

type captureAdapter struct {
	request  core.TransportRequest
	response core.TransportResponse
	err      error
	calls    int
}

func (a *captureAdapter) Kind() string { return "capture" }

func (a *captureAdapter) Do(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	a.calls++
	a.request = req
	return a.response, a.err
}

type staticSecrets map[string]string

func (s staticSecrets) GetSecret(_ context.Context, ref string) (string, error) {
	secret, ok := s[ref]
	if !ok {
		return "", errors.New("secret not found")
	}
	return secret, nil
}
