package query

import "strings"

const (
	TypeGetEvent               = "delivery.query.outbox.get"
	TypeGetDelivery            = "delivery.query.webhooks.get"
	TypeGetEndpoint            = "delivery.query.endpoint.get"
	TypeListSubscribedEndpoint = "delivery.query.endpoint.list_subscribed"
	TypeEventStats             = "delivery.query.outbox.stats"
	TypeDeliveryStats          = "delivery.query.webhooks.stats"
)

type GetEventMessage struct {
	EventID string
}

func (GetEventMessage) Type() string { return TypeGetEvent }

func (m GetEventMessage) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return queryValidationError("event_id", "event id is required")
	}
	return nil
}

type GetDeliveryMessage struct {
	DeliveryID string
}

func (GetDeliveryMessage) Type() string { return TypeGetDelivery }

func (m GetDeliveryMessage) Validate() error {
	if strings.TrimSpace(m.DeliveryID) == "" {
		return queryValidationError("delivery_id", "delivery id is required")
	}
	return nil
}

type GetEndpointMessage struct {
	EndpointID string
}

func (GetEndpointMessage) Type() string { return TypeGetEndpoint }

func (m GetEndpointMessage) Validate() error {
	if strings.TrimSpace(m.EndpointID) == "" {
		return queryValidationError("endpoint_id", "endpoint id is required")
	}
	return nil
}

type ListSubscribedEndpointsMessage struct {
	TenantID  string
	EventType string
}

func (ListSubscribedEndpointsMessage) Type() string { return TypeListSubscribedEndpoint }

func (m ListSubscribedEndpointsMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return queryValidationError("tenant_id", "tenant id is required")
	}
	if strings.TrimSpace(m.EventType) == "" {
		return queryValidationError("event_type", "event type is required")
	}
	return nil
}

// EventStatsMessage requests per-status outbox counts for one tenant.
type EventStatsMessage struct {
	TenantID string
}

func (EventStatsMessage) Type() string { return TypeEventStats }

func (m EventStatsMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return queryValidationError("tenant_id", "tenant id is required")
	}
	return nil
}

type DeliveryStatsMessage struct {
	TenantID string
}

func (DeliveryStatsMessage) Type() string { return TypeDeliveryStats }

func (m DeliveryStatsMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return queryValidationError("tenant_id", "tenant id is required")
	}
	return nil
}
