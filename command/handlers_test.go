package command

import (
	"context"
	"fmt"
	"testing"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-delivery/core"
)

func TestEnqueueEventCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.OutboxEvent{ID: "evt-row-1", EventID: "evt-1", Status: core.OutboxStatusPending}
	called := false

	svc := stubMutatingService{
		enqueueEventFn: func(_ context.Context, event core.OutboxEvent) (core.OutboxEvent, error) {
			called = true
			if event.TenantID != "acme" || event.EventType != "order.created" {
				t.Fatalf("unexpected event payload: %#v", event)
			}
			return expected, nil
		},
	}

	cmd := NewEnqueueEventCommand(svc)
	collector := gocmd.NewResult[core.OutboxEvent]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, EnqueueEventMessage{Event: core.OutboxEvent{
		TenantID:       "acme",
		EventType:      "order.created",
		IdempotencyKey: "order-1",
	}})
	if err != nil {
		t.Fatalf("execute enqueue event: %v", err)
	}
	if !called {
		t.Fatalf("expected enqueue service invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.ID != expected.ID || result.Status != expected.Status {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestDispatchCommands_DelegateToService(t *testing.T) {
	t.Run("dispatch outbox", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			dispatchOutboxFn: func(_ context.Context, batchSize int) (core.DispatchStats, error) {
				called = true
				if batchSize != 25 {
					t.Fatalf("unexpected batch size %d", batchSize)
				}
				return core.DispatchStats{Claimed: 25, Published: 24, Retried: 1}, nil
			},
		}
		cmd := NewDispatchOutboxCommand(svc)
		collector := gocmd.NewResult[core.DispatchStats]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := cmd.Execute(ctx, DispatchOutboxMessage{BatchSize: 25}); err != nil {
			t.Fatalf("execute dispatch outbox: %v", err)
		}
		if !called {
			t.Fatalf("expected dispatch outbox invocation")
		}
		stats, ok := collector.Load()
		if !ok {
			t.Fatalf("expected dispatch stats result")
		}
		if stats.Published != 24 || stats.Retried != 1 {
			t.Fatalf("unexpected stats: %#v", stats)
		}
	})

	t.Run("expand fanout", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			expandFanoutFn: func(_ context.Context, batchSize int) (core.FanoutStats, error) {
				called = true
				return core.FanoutStats{Scanned: 3, Created: 5, Deduped: 1}, nil
			},
		}
		cmd := NewExpandFanoutCommand(svc)
		collector := gocmd.NewResult[core.FanoutStats]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := cmd.Execute(ctx, ExpandFanoutMessage{}); err != nil {
			t.Fatalf("execute expand fanout: %v", err)
		}
		if !called {
			t.Fatalf("expected expand fanout invocation")
		}
		stats, ok := collector.Load()
		if !ok {
			t.Fatalf("expected fanout stats result")
		}
		if stats.Created != 5 || stats.Deduped != 1 {
			t.Fatalf("unexpected fanout stats: %#v", stats)
		}
	})

	t.Run("dispatch webhooks", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			dispatchWebhooksFn: func(_ context.Context, batchSize int) (core.DispatchStats, error) {
				called = true
				return core.DispatchStats{Claimed: 2, Delivered: 2}, nil
			},
		}
		cmd := NewDispatchWebhooksCommand(svc)
		collector := gocmd.NewResult[core.DispatchStats]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := cmd.Execute(ctx, DispatchWebhooksMessage{}); err != nil {
			t.Fatalf("execute dispatch webhooks: %v", err)
		}
		if !called {
			t.Fatalf("expected dispatch webhooks invocation")
		}
		stats, ok := collector.Load()
		if !ok {
			t.Fatalf("expected dispatch stats result")
		}
		if stats.Delivered != 2 {
			t.Fatalf("unexpected stats: %#v", stats)
		}
	})

	t.Run("release stuck", func(t *testing.T) {
		svc := stubMutatingService{
			releaseStuckFn: func(_ context.Context) (int, error) {
				return 4, nil
			},
		}
		cmd := NewReleaseStuckCommand(svc)
		collector := gocmd.NewResult[int]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := cmd.Execute(ctx, ReleaseStuckMessage{}); err != nil {
			t.Fatalf("execute release stuck: %v", err)
		}
		released, ok := collector.Load()
		if !ok {
			t.Fatalf("expected released count result")
		}
		if released != 4 {
			t.Fatalf("expected 4 released, got %d", released)
		}
	})

	t.Run("replay commands", func(t *testing.T) {
		calledEvent := false
		calledDelivery := false
		svc := stubMutatingService{
			replayEventFn: func(_ context.Context, id string) error {
				calledEvent = true
				if id != "evt-row-1" {
					t.Fatalf("unexpected event id %q", id)
				}
				return nil
			},
			replayDeliveryFn: func(_ context.Context, id string) error {
				calledDelivery = true
				if id != "dlv-row-1" {
					t.Fatalf("unexpected delivery id %q", id)
				}
				return nil
			},
		}
		if err := NewReplayEventCommand(svc).Execute(context.Background(), ReplayEventMessage{EventID: "evt-row-1"}); err != nil {
			t.Fatalf("execute replay event: %v", err)
		}
		if !calledEvent {
			t.Fatalf("expected replay event invocation")
		}
		if err := NewReplayDeliveryCommand(svc).Execute(context.Background(), ReplayDeliveryMessage{DeliveryID: "dlv-row-1"}); err != nil {
			t.Fatalf("execute replay delivery: %v", err)
		}
		if !calledDelivery {
			t.Fatalf("expected replay delivery invocation")
		}
	})
}

func TestCommands_SurfaceServiceErrors(t *testing.T) {
	boom := fmt.Errorf("dispatch blew up")
	svc := stubMutatingService{
		dispatchOutboxFn: func(_ context.Context, _ int) (core.DispatchStats, error) {
			return core.DispatchStats{}, boom
		},
	}
	err := NewDispatchOutboxCommand(svc).Execute(context.Background(), DispatchOutboxMessage{})
	if err == nil || err.Error() != boom.Error() {
		t.Fatalf("expected service error to surface, got %v", err)
	}
}

func TestMessageValidation(t *testing.T) {
	tests := []struct {
		name    string
		msg     interface{ Validate() error }
		wantErr bool
	}{
		{
			name: "enqueue event valid",
			msg: EnqueueEventMessage{Event: core.OutboxEvent{
				TenantID:       "acme",
				EventType:      "order.created",
				IdempotencyKey: "order-1",
			}},
			wantErr: false,
		},
		{
			name: "enqueue event missing tenant",
			msg: EnqueueEventMessage{Event: core.OutboxEvent{
				EventType:      "order.created",
				IdempotencyKey: "order-1",
			}},
			wantErr: true,
		},
		{
			name: "enqueue event missing idempotency key",
			msg: EnqueueEventMessage{Event: core.OutboxEvent{
				TenantID:  "acme",
				EventType: "order.created",
			}},
			wantErr: true,
		},
		{
			name:    "dispatch outbox default batch",
			msg:     DispatchOutboxMessage{},
			wantErr: false,
		},
		{
			name:    "dispatch outbox negative batch",
			msg:     DispatchOutboxMessage{BatchSize: -1},
			wantErr: true,
		},
		{
			name:    "expand fanout negative batch",
			msg:     ExpandFanoutMessage{BatchSize: -5},
			wantErr: true,
		},
		{
			name:    "dispatch webhooks valid",
			msg:     DispatchWebhooksMessage{BatchSize: 10},
			wantErr: false,
		},
		{
			name:    "release stuck always valid",
			msg:     ReleaseStuckMessage{},
			wantErr: false,
		},
		{
			name:    "replay event missing id",
			msg:     ReplayEventMessage{},
			wantErr: true,
		},
		{
			name:    "replay delivery missing id",
			msg:     ReplayDeliveryMessage{DeliveryID: "  "},
			wantErr: true,
		},
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

type stubMutatingService struct {
	enqueueEventFn     func(ctx context.Context, event core.OutboxEvent) (core.OutboxEvent, error)
	dispatchOutboxFn   func(ctx context.Context, batchSize int) (core.DispatchStats, error)
	expandFanoutFn     func(ctx context.Context, batchSize int) (core.FanoutStats, error)
	dispatchWebhooksFn func(ctx context.Context, batchSize int) (core.DispatchStats, error)
	releaseStuckFn     func(ctx context.Context) (int, error)
	replayEventFn      func(ctx context.Context, id string) error
	replayDeliveryFn   func(ctx context.Context, id string) error
}

func (s stubMutatingService) EnqueueEvent(ctx context.Context, event core.OutboxEvent) (core.OutboxEvent, error) {
	if s.enqueueEventFn == nil {
		return core.OutboxEvent{}, fmt.Errorf("enqueue event not configured")
	}
	return s.enqueueEventFn(ctx, event)
}

func (s stubMutatingService) DispatchOutbox(ctx context.Context, batchSize int) (core.DispatchStats, error) {
	if s.dispatchOutboxFn == nil {
		return core.DispatchStats{}, fmt.Errorf("dispatch outbox not configured")
	}
	return s.dispatchOutboxFn(ctx, batchSize)
}

func (s stubMutatingService) ExpandFanout(ctx context.Context, batchSize int) (core.FanoutStats, error) {
	if s.expandFanoutFn == nil {
		return core.FanoutStats{}, fmt.Errorf("expand fanout not configured")
	}
	return s.expandFanoutFn(ctx, batchSize)
}

func (s stubMutatingService) DispatchWebhooks(ctx context.Context, batchSize int) (core.DispatchStats, error) {
	if s.dispatchWebhooksFn == nil {
		return core.DispatchStats{}, fmt.Errorf("dispatch webhooks not configured")
	}
	return s.dispatchWebhooksFn(ctx, batchSize)
}

func (s stubMutatingService) ReleaseStuck(ctx context.Context) (int, error) {
	if s.releaseStuckFn == nil {
		return 0, fmt.Errorf("release stuck not configured")
	}
	return s.releaseStuckFn(ctx)
}

func (s stubMutatingService) ReplayEvent(ctx context.Context, id string) error {
	if s.replayEventFn == nil {
		return fmt.Errorf("replay event not configured")
	}
	return s.replayEventFn(ctx, id)
}

func (s stubMutatingService) ReplayDelivery(ctx context.Context, id string) error {
	if s.replayDeliveryFn == nil {
		return fmt.Errorf("replay delivery not configured")
	}
	return s.replayDeliveryFn(ctx, id)
}

var _ MutatingService = stubMutatingService{}
