package core

import (
	"errors"
	"testing"
)

func TestWebhookEndpoint_ValidateRejectsPlainHTTP(t *testing.T) {
	endpoint := WebhookEndpoint{
		TenantID:  "tenant_1",
		URL:       "http://a.example.com/hook",
		SecretRef: "env://WEBHOOK_SECRET",
	}
	if err := endpoint.Validate(); !errors.Is(err, ErrEndpointURLNotHTTPS) {
		t.Fatalf("expected https error, got %v", err)
	}
}

func TestWebhookEndpoint_SubscribesTo(t *testing.T) {
	endpoint := WebhookEndpoint{
		EventTypes: []string{"invoice.paid", "invoice.voided"},
	}
	if !endpoint.SubscribesTo("invoice.paid") {
		t.Fatalf("expected subscription to invoice.paid")
	}
	if endpoint.SubscribesTo("customer.created") {
		t.Fatalf("unexpected subscription to customer.created")
	}

	wildcard := WebhookEndpoint{EventTypes: []string{"*"}}
	if !wildcard.SubscribesTo("anything.at.all") {
		t.Fatalf("expected wildcard subscription")
	}

	empty := WebhookEndpoint{}
	if empty.SubscribesTo("invoice.paid") {
		t.Fatalf("endpoint without subscriptions should receive nothing")
	}
}

func TestOutboxStatus_Terminal(t *testing.T) {
	if !OutboxStatusPublished.Terminal() || !OutboxStatusDeadLetter.Terminal() {
		t.Fatalf("expected published and dead_letter to be terminal")
	}
	if OutboxStatusPending.Terminal() || OutboxStatusFailed.Terminal() {
		t.Fatalf("pending and failed must not be terminal")
	}
}

func TestDispatchStats_Processed(t *testing.T) {
	stats := DispatchStats{Published: 2, Delivered: 1, Retried: 3, DeadLettered: 1}
	if stats.Processed() != 7 {
		t.Fatalf("expected 7 processed, got %d", stats.Processed())
	}
}
