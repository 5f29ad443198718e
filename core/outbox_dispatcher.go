package core

import (
	"context"
	"fmt"
	"sync/atomic"
)

const outboxJobName = "delivery.outbox.dispatch"

// OutboxDispatcher drains the outbox on a fixed interval. Only one cycle
// runs at a time per dispatcher; overlapping manual calls fail fast with
// ErrDispatchInFlight while periodic ticks skip silently.
type OutboxDispatcher struct {
	service  *Service
	runner   *IntervalRunner
	inFlight atomic.Bool
}

func NewOutboxDispatcher(service *Service) (*OutboxDispatcher, error) {
	if service == nil {
		return nil, fmt.Errorf("core: service is required")
	}
	d := &OutboxDispatcher{service: service}
	runner, err := NewIntervalRunner(outboxJobName, service.Config().Outbox.Interval, d.tick)
	if err != nil {
		return nil, err
	}
	d.runner = runner
	return d, nil
}

func (d *OutboxDispatcher) Run(ctx context.Context) error {
	if d == nil {
		return fmt.Errorf("core: outbox dispatcher is not configured")
	}
	return d.runner.Run(ctx)
}

func (d *OutboxDispatcher) Stop() {
	if d == nil {
		return
	}
	d.runner.Stop()
}

func (d *OutboxDispatcher) Shutdown(ctx context.Context) error {
	if d == nil {
		return nil
	}
	return d.runner.Shutdown(ctx)
}

// DispatchNow runs one cycle immediately, outside the ticker.
func (d *OutboxDispatcher) DispatchNow(ctx context.Context) (DispatchStats, error) {
	if d == nil || d.service == nil {
		return DispatchStats{}, fmt.Errorf("core: outbox dispatcher is not configured")
	}
	if !d.inFlight.CompareAndSwap(false, true) {
		return DispatchStats{}, d.service.mapError(ErrDispatchInFlight)
	}
	defer d.inFlight.Store(false)
	return d.service.DispatchOutbox(ctx, 0)
}

func (d *OutboxDispatcher) tick(ctx context.Context) {
	if !d.service.readinessGuard.ShouldRunBackgroundJob(ctx, outboxJobName) {
		return
	}
	if !d.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer d.inFlight.Store(false)
	// Errors are already observed per cycle inside the service.
	_, _ = d.service.DispatchOutbox(ctx, 0)
}
