package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/goliatone/go-delivery/core"
)

func TestGetEventQuery_DelegatesToReader(t *testing.T) {
	expected := core.OutboxEvent{ID: "evt-row-1", EventType: "order.created"}
	reader := stubEventReader{
		getEventFn: func(_ context.Context, id string) (core.OutboxEvent, error) {
			if id != "evt-row-1" {
				t.Fatalf("unexpected event id %q", id)
			}
			return expected, nil
		},
	}

	event, err := NewGetEventQuery(reader).Query(context.Background(), GetEventMessage{EventID: "evt-row-1"})
	if err != nil {
		t.Fatalf("query event: %v", err)
	}
	if event.ID != expected.ID || event.EventType != expected.EventType {
		t.Fatalf("unexpected event: %#v", event)
	}
}

func TestEventStatsQuery_DelegatesToReader(t *testing.T) {
	reader := stubEventReader{
		eventStatsFn: func(_ context.Context, tenantID string) (core.EventStats, error) {
			if tenantID != "acme" {
				t.Fatalf("unexpected tenant %q", tenantID)
			}
			return core.EventStats{Pending: 2, Published: 7, DeadLetter: 1}, nil
		},
	}

	stats, err := NewEventStatsQuery(reader).Query(context.Background(), EventStatsMessage{TenantID: "acme"})
	if err != nil {
		t.Fatalf("query event stats: %v", err)
	}
	if stats.Total() != 10 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}

func TestDeliveryQueries_DelegateToReader(t *testing.T) {
	reader := stubDeliveryReader{
		getDeliveryFn: func(_ context.Context, id string) (core.WebhookDelivery, error) {
			return core.WebhookDelivery{ID: id, Status: core.DeliveryStatusDelivered}, nil
		},
		deliveryStatsFn: func(_ context.Context, tenantID string) (core.DeliveryStats, error) {
			return core.DeliveryStats{Delivered: 3, Failed: 1}, nil
		},
	}

	delivery, err := NewGetDeliveryQuery(reader).Query(context.Background(), GetDeliveryMessage{DeliveryID: "dlv-1"})
	if err != nil {
		t.Fatalf("query delivery: %v", err)
	}
	if delivery.ID != "dlv-1" || delivery.Status != core.DeliveryStatusDelivered {
		t.Fatalf("unexpected delivery: %#v", delivery)
	}

	stats, err := NewDeliveryStatsQuery(reader).Query(context.Background(), DeliveryStatsMessage{TenantID: "acme"})
	if err != nil {
		t.Fatalf("query delivery stats: %v", err)
	}
	if stats.Delivered != 3 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}

func TestEndpointQueries_DelegateToReader(t *testing.T) {
	reader := stubEndpointReader{
		getEndpointFn: func(_ context.Context, id string) (core.WebhookEndpoint, error) {
			return core.WebhookEndpoint{ID: id, URL: "https://example.com/hooks"}, nil
		},
		listSubscribedFn: func(_ context.Context, tenantID string, eventType string) ([]core.WebhookEndpoint, error) {
			if tenantID != "acme" || eventType != "order.created" {
				t.Fatalf("unexpected filter %q %q", tenantID, eventType)
			}
			return []core.WebhookEndpoint{{ID: "ep-1"}, {ID: "ep-2"}}, nil
		},
	}

	endpoint, err := NewGetEndpointQuery(reader).Query(context.Background(), GetEndpointMessage{EndpointID: "ep-1"})
	if err != nil {
		t.Fatalf("query endpoint: %v", err)
	}
	if endpoint.ID != "ep-1" {
		t.Fatalf("unexpected endpoint: %#v", endpoint)
	}

	endpoints, err := NewListSubscribedEndpointsQuery(reader).Query(context.Background(), ListSubscribedEndpointsMessage{
		TenantID:  "acme",
		EventType: "order.created",
	})
	if err != nil {
		t.Fatalf("query subscribed endpoints: %v", err)
	}
	if len(endpoints) != 2 {
		t.Fatalf("expected 2 endpoints, got %d", len(endpoints))
	}
}

func TestQueries_SurfaceReaderErrors(t *testing.T) {
	boom := fmt.Errorf("store unavailable")
	reader := stubEventReader{
		getEventFn: func(_ context.Context, _ string) (core.OutboxEvent, error) {
			return core.OutboxEvent{}, boom
		},
	}
	if _, err := NewGetEventQuery(reader).Query(context.Background(), GetEventMessage{EventID: "evt-1"}); err == nil {
		t.Fatalf("expected reader error to surface")
	}
}

func TestQueryMessageValidation(t *testing.T) {
	tests := []struct {
		name    string
		msg     interface{ Validate() error }
		wantErr bool
	}{
		{name: "get event valid", msg: GetEventMessage{EventID: "evt-1"}, wantErr: false},
		{name: "get event missing id", msg: GetEventMessage{}, wantErr: true},
		{name: "get delivery missing id", msg: GetDeliveryMessage{}, wantErr: true},
		{name: "get endpoint missing id", msg: GetEndpointMessage{}, wantErr: true},
		{
			name:    "list subscribed valid",
			msg:     ListSubscribedEndpointsMessage{TenantID: "acme", EventType: "order.created"},
			wantErr: false,
		},
		{
			name:    "list subscribed missing event type",
			msg:     ListSubscribedEndpointsMessage{TenantID: "acme"},
			wantErr: true,
		},
		{name: "event stats valid", msg: EventStatsMessage{TenantID: "acme"}, wantErr: false},
		{name: "event stats missing tenant", msg: EventStatsMessage{}, wantErr: true},
		{name: "delivery stats missing tenant", msg: DeliveryStatsMessage{TenantID: "  "}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type stubEventReader struct {
	getEventFn   func(ctx context.Context, id string) (core.OutboxEvent, error)
	eventStatsFn func(ctx context.Context, tenantID string) (core.EventStats, error)
}

func (s stubEventReader) GetEvent(ctx context.Context, id string) (core.OutboxEvent, error) {
	if s.getEventFn == nil {
		return core.OutboxEvent{}, fmt.Errorf("get event not configured")
	}
	return s.getEventFn(ctx, id)
}

func (s stubEventReader) EventStats(ctx context.Context, tenantID string) (core.EventStats, error) {
	if s.eventStatsFn == nil {
		return core.EventStats{}, fmt.Errorf("event stats not configured")
	}
	return s.eventStatsFn(ctx, tenantID)
}

type stubDeliveryReader struct {
	getDeliveryFn   func(ctx context.Context, id string) (core.WebhookDelivery, error)
	deliveryStatsFn func(ctx context.Context, tenantID string) (core.DeliveryStats, error)
}

func (s stubDeliveryReader) GetDelivery(ctx context.Context, id string) (core.WebhookDelivery, error) {
	if s.getDeliveryFn == nil {
		return core.WebhookDelivery{}, fmt.Errorf("get delivery not configured")
	}
	return s.getDeliveryFn(ctx, id)
}

func (s stubDeliveryReader) DeliveryStats(ctx context.Context, tenantID string) (core.DeliveryStats, error) {
	if s.deliveryStatsFn == nil {
		return core.DeliveryStats{}, fmt.Errorf("delivery stats not configured")
	}
	return s.deliveryStatsFn(ctx, tenantID)
}

type stubEndpointReader struct {
	getEndpointFn    func(ctx context.Context, id string) (core.WebhookEndpoint, error)
	listSubscribedFn func(ctx context.Context, tenantID string, eventType string) ([]core.WebhookEndpoint, error)
}

func (s stubEndpointReader) GetEndpoint(ctx context.Context, id string) (core.WebhookEndpoint, error) {
	if s.getEndpointFn == nil {
		return core.WebhookEndpoint{}, fmt.Errorf("get endpoint not configured")
	}
	return s.getEndpointFn(ctx, id)
}

func (s stubEndpointReader) ListSubscribed(
	ctx context.Context,
	tenantID string,
	eventType string,
) ([]core.WebhookEndpoint, error) {
	if s.listSubscribedFn == nil {
		return nil, fmt.Errorf("list subscribed not configured")
	}
	return s.listSubscribedFn(ctx, tenantID, eventType)
}

var (
	_ EventReader    = stubEventReader{}
	_ DeliveryReader = stubDeliveryReader{}
	_ EndpointReader = stubEndpointReader{}
)
