package core

import (
	"context"
	"fmt"
	"sync/atomic"
)

const webhookJobName = "delivery.webhooks.dispatch"

// WebhookDispatcher expands fanout and drains pending deliveries on a fixed
// interval. Fanout runs before dispatch so freshly published events become
// deliverable within the same cycle.
type WebhookDispatcher struct {
	service  *Service
	runner   *IntervalRunner
	inFlight atomic.Bool
}

func NewWebhookDispatcher(service *Service) (*WebhookDispatcher, error) {
	if service == nil {
		return nil, fmt.Errorf("core: service is required")
	}
	d := &WebhookDispatcher{service: service}
	runner, err := NewIntervalRunner(webhookJobName, service.Config().Webhooks.Interval, d.tick)
	if err != nil {
		return nil, err
	}
	d.runner = runner
	return d, nil
}

func (d *WebhookDispatcher) Run(ctx context.Context) error {
	if d == nil {
		return fmt.Errorf("core: webhook dispatcher is not configured")
	}
	return d.runner.Run(ctx)
}

func (d *WebhookDispatcher) Stop() {
	if d == nil {
		return
	}
	d.runner.Stop()
}

func (d *WebhookDispatcher) Shutdown(ctx context.Context) error {
	if d == nil {
		return nil
	}
	return d.runner.Shutdown(ctx)
}

// DispatchNow runs one fanout plus dispatch cycle immediately.
func (d *WebhookDispatcher) DispatchNow(ctx context.Context) (FanoutStats, DispatchStats, error) {
	if d == nil || d.service == nil {
		return FanoutStats{}, DispatchStats{}, fmt.Errorf("core: webhook dispatcher is not configured")
	}
	if !d.inFlight.CompareAndSwap(false, true) {
		return FanoutStats{}, DispatchStats{}, d.service.mapError(ErrDispatchInFlight)
	}
	defer d.inFlight.Store(false)

	fanout, err := d.service.ExpandFanout(ctx, 0)
	if err != nil {
		return fanout, DispatchStats{}, err
	}
	dispatch, err := d.service.DispatchWebhooks(ctx, 0)
	return fanout, dispatch, err
}

func (d *WebhookDispatcher) tick(ctx context.Context) {
	if !d.service.readinessGuard.ShouldRunBackgroundJob(ctx, webhookJobName) {
		return
	}
	if !d.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer d.inFlight.Store(false)
	_, _ = d.service.ExpandFanout(ctx, 0)
	_, _ = d.service.DispatchWebhooks(ctx, 0)
}
