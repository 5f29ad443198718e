package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-delivery/core"
)

type MutatingService interface {
	EnqueueEvent(ctx context.Context, event core.OutboxEvent) (core.OutboxEvent, error)
	DispatchOutbox(ctx context.Context, batchSize int) (core.DispatchStats, error)
	ExpandFanout(ctx context.Context, batchSize int) (core.FanoutStats, error)
	DispatchWebhooks(ctx context.Context, batchSize int) (core.DispatchStats, error)
	ReleaseStuck(ctx context.Context) (int, error)
	ReplayEvent(ctx context.Context, id string) error
	ReplayDelivery(ctx context.Context, id string) error
}

type EnqueueEventCommand struct {
	service MutatingService
}

func NewEnqueueEventCommand(service MutatingService) *EnqueueEventCommand {
	return &EnqueueEventCommand{service: service}
}

func (c *EnqueueEventCommand) Execute(ctx context.Context, msg EnqueueEventMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: enqueue event service is required")
	}
	out, err := c.service.EnqueueEvent(ctx, msg.Event)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DispatchOutboxCommand struct {
	service MutatingService
}

func NewDispatchOutboxCommand(service MutatingService) *DispatchOutboxCommand {
	return &DispatchOutboxCommand{service: service}
}

func (c *DispatchOutboxCommand) Execute(ctx context.Context, msg DispatchOutboxMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: outbox dispatch service is required")
	}
	out, err := c.service.DispatchOutbox(ctx, msg.BatchSize)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ExpandFanoutCommand struct {
	service MutatingService
}

func NewExpandFanoutCommand(service MutatingService) *ExpandFanoutCommand {
	return &ExpandFanoutCommand{service: service}
}

func (c *ExpandFanoutCommand) Execute(ctx context.Context, msg ExpandFanoutMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: fanout service is required")
	}
	out, err := c.service.ExpandFanout(ctx, msg.BatchSize)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DispatchWebhooksCommand struct {
	service MutatingService
}

func NewDispatchWebhooksCommand(service MutatingService) *DispatchWebhooksCommand {
	return &DispatchWebhooksCommand{service: service}
}

func (c *DispatchWebhooksCommand) Execute(ctx context.Context, msg DispatchWebhooksMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: webhook dispatch service is required")
	}
	out, err := c.service.DispatchWebhooks(ctx, msg.BatchSize)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ReleaseStuckCommand struct {
	service MutatingService
}

func NewReleaseStuckCommand(service MutatingService) *ReleaseStuckCommand {
	return &ReleaseStuckCommand{service: service}
}

func (c *ReleaseStuckCommand) Execute(ctx context.Context, msg ReleaseStuckMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: stuck release service is required")
	}
	released, err := c.service.ReleaseStuck(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, released)
	return nil
}

type ReplayEventCommand struct {
	service MutatingService
}

func NewReplayEventCommand(service MutatingService) *ReplayEventCommand {
	return &ReplayEventCommand{service: service}
}

func (c *ReplayEventCommand) Execute(ctx context.Context, msg ReplayEventMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: event replay service is required")
	}
	return c.service.ReplayEvent(ctx, msg.EventID)
}

type ReplayDeliveryCommand struct {
	service MutatingService
}

func NewReplayDeliveryCommand(service MutatingService) *ReplayDeliveryCommand {
	return &ReplayDeliveryCommand{service: service}
}

func (c *ReplayDeliveryCommand) Execute(ctx context.Context, msg ReplayDeliveryMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: delivery replay service is required")
	}
	return c.service.ReplayDelivery(ctx, msg.DeliveryID)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
