package query

import (
	"context"

	"github.com/goliatone/go-delivery/core"
)

type EventReader interface {
	GetEvent(ctx context.Context, id string) (core.OutboxEvent, error)
	EventStats(ctx context.Context, tenantID string) (core.EventStats, error)
}

type DeliveryReader interface {
	GetDelivery(ctx context.Context, id string) (core.WebhookDelivery, error)
	DeliveryStats(ctx context.Context, tenantID string) (core.DeliveryStats, error)
}

type EndpointReader interface {
	GetEndpoint(ctx context.Context, id string) (core.WebhookEndpoint, error)
	ListSubscribed(ctx context.Context, tenantID string, eventType string) ([]core.WebhookEndpoint, error)
}

type GetEventQuery struct {
	reader EventReader
}

func NewGetEventQuery(reader EventReader) *GetEventQuery {
	return &GetEventQuery{reader: reader}
}

func (q *GetEventQuery) Query(ctx context.Context, msg GetEventMessage) (core.OutboxEvent, error) {
	if q == nil || q.reader == nil {
		return core.OutboxEvent{}, queryDependencyError("query: event reader is required")
	}
	return q.reader.GetEvent(ctx, msg.EventID)
}

type EventStatsQuery struct {
	reader EventReader
}

func NewEventStatsQuery(reader EventReader) *EventStatsQuery {
	return &EventStatsQuery{reader: reader}
}

func (q *EventStatsQuery) Query(ctx context.Context, msg EventStatsMessage) (core.EventStats, error) {
	if q == nil || q.reader == nil {
		return core.EventStats{}, queryDependencyError("query: event reader is required")
	}
	return q.reader.EventStats(ctx, msg.TenantID)
}

type GetDeliveryQuery struct {
	reader DeliveryReader
}

func NewGetDeliveryQuery(reader DeliveryReader) *GetDeliveryQuery {
	return &GetDeliveryQuery{reader: reader}
}

func (q *GetDeliveryQuery) Query(ctx context.Context, msg GetDeliveryMessage) (core.WebhookDelivery, error) {
	if q == nil || q.reader == nil {
		return core.WebhookDelivery{}, queryDependencyError("query: delivery reader is required")
	}
	return q.reader.GetDelivery(ctx, msg.DeliveryID)
}

type DeliveryStatsQuery struct {
	reader DeliveryReader
}

func NewDeliveryStatsQuery(reader DeliveryReader) *DeliveryStatsQuery {
	return &DeliveryStatsQuery{reader: reader}
}

func (q *DeliveryStatsQuery) Query(ctx context.Context, msg DeliveryStatsMessage) (core.DeliveryStats, error) {
	if q == nil || q.reader == nil {
		return core.DeliveryStats{}, queryDependencyError("query: delivery reader is required")
	}
	return q.reader.DeliveryStats(ctx, msg.TenantID)
}

type GetEndpointQuery struct {
	reader EndpointReader
}

func NewGetEndpointQuery(reader EndpointReader) *GetEndpointQuery {
	return &GetEndpointQuery{reader: reader}
}

func (q *GetEndpointQuery) Query(ctx context.Context, msg GetEndpointMessage) (core.WebhookEndpoint, error) {
	if q == nil || q.reader == nil {
		return core.WebhookEndpoint{}, queryDependencyError("query: endpoint reader is required")
	}
	return q.reader.GetEndpoint(ctx, msg.EndpointID)
}

type ListSubscribedEndpointsQuery struct {
	reader EndpointReader
}

func NewListSubscribedEndpointsQuery(reader EndpointReader) *ListSubscribedEndpointsQuery {
	return &ListSubscribedEndpointsQuery{reader: reader}
}

func (q *ListSubscribedEndpointsQuery) Query(
	ctx context.Context,
	msg ListSubscribedEndpointsMessage,
) ([]core.WebhookEndpoint, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: endpoint reader is required")
	}
	return q.reader.ListSubscribed(ctx, msg.TenantID, msg.EventType)
}
