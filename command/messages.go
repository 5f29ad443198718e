package command

import (
	"strings"

	"github.com/goliatone/go-delivery/core"
)

const (
	TypeEnqueueEvent     = "delivery.command.outbox.enqueue"
	TypeDispatchOutbox   = "delivery.command.outbox.dispatch"
	TypeExpandFanout     = "delivery.command.fanout.expand"
	TypeDispatchWebhooks = "delivery.command.webhooks.dispatch"
	TypeReleaseStuck     = "delivery.command.stuck.release"
	TypeReplayEvent      = "delivery.command.outbox.replay"
	TypeReplayDelivery   = "delivery.command.webhooks.replay"
)

type EnqueueEventMessage struct {
	Event core.OutboxEvent
}

func (EnqueueEventMessage) Type() string { return TypeEnqueueEvent }

func (m EnqueueEventMessage) Validate() error {
	if strings.TrimSpace(m.Event.TenantID) == "" {
		return commandValidationError("tenant_id", "tenant id is required")
	}
	if strings.TrimSpace(m.Event.EventType) == "" {
		return commandValidationError("event_type", "event type is required")
	}
	if strings.TrimSpace(m.Event.IdempotencyKey) == "" {
		return commandValidationError("idempotency_key", "idempotency key is required")
	}
	return nil
}

// DispatchOutboxMessage triggers one outbox dispatch cycle. A batch size of
// zero falls back to the configured default.
type DispatchOutboxMessage struct {
	BatchSize int
}

func (DispatchOutboxMessage) Type() string { return TypeDispatchOutbox }

func (m DispatchOutboxMessage) Validate() error {
	if m.BatchSize < 0 {
		return commandInvalidInputError("command: batch size must be >= 0")
	}
	return nil
}

type ExpandFanoutMessage struct {
	BatchSize int
}

func (ExpandFanoutMessage) Type() string { return TypeExpandFanout }

func (m ExpandFanoutMessage) Validate() error {
	if m.BatchSize < 0 {
		return commandInvalidInputError("command: batch size must be >= 0")
	}
	return nil
}

type DispatchWebhooksMessage struct {
	BatchSize int
}

func (DispatchWebhooksMessage) Type() string { return TypeDispatchWebhooks }

func (m DispatchWebhooksMessage) Validate() error {
	if m.BatchSize < 0 {
		return commandInvalidInputError("command: batch size must be >= 0")
	}
	return nil
}

type ReleaseStuckMessage struct{}

func (ReleaseStuckMessage) Type() string { return TypeReleaseStuck }

func (ReleaseStuckMessage) Validate() error { return nil }

type ReplayEventMessage struct {
	EventID string
}

func (ReplayEventMessage) Type() string { return TypeReplayEvent }

func (m ReplayEventMessage) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return commandValidationError("event_id", "event id is required")
	}
	return nil
}

type ReplayDeliveryMessage struct {
	DeliveryID string
}

func (ReplayDeliveryMessage) Type() string { return TypeReplayDelivery }

func (m ReplayDeliveryMessage) Validate() error {
	if strings.TrimSpace(m.DeliveryID) == "" {
		return commandValidationError("delivery_id", "delivery id is required")
	}
	return nil
}
