package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	deliverycommand "github.com/goliatone/go-delivery/command"
	deliveryquery "github.com/goliatone/go-delivery/query"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

// ValidateMessageContract enforces the Type() plus optional Validate()
// contract every dispatch and replay message must satisfy before it is
// handed to the command bus.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func SubscribeCommandFunc[T any](handler command.CommandFunc[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(handler, runnerOpts...)
}

func SubscribeQuery[T any, R any](qry command.Querier[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func SubscribeQueryFunc[T any, R any](qry command.QueryFunc[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	subscription := SubscribeQuery(qry, runnerOpts...)
	if err := adapter.RegisterQuery(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// SubscriptionGroup releases a set of dispatcher subscriptions together.
type SubscriptionGroup []commanddispatcher.Subscription

func (g SubscriptionGroup) Unsubscribe() {
	for _, sub := range g {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}

// RegisterDeliveryCommands registers and subscribes the full pipeline
// command set against one service. On any failure the already-subscribed
// handlers are released.
func RegisterDeliveryCommands(
	adapter *RegistryAdapter,
	service deliverycommand.MutatingService,
	runnerOpts ...runner.Option,
) (SubscriptionGroup, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if service == nil {
		return nil, fmt.Errorf("gocommand: mutating service is required")
	}

	var group SubscriptionGroup
	register := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			group.Unsubscribe()
			return err
		}
		group = append(group, sub)
		return nil
	}

	if err := register(RegisterAndSubscribe(adapter, deliverycommand.NewEnqueueEventCommand(service), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe(adapter, deliverycommand.NewDispatchOutboxCommand(service), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe(adapter, deliverycommand.NewExpandFanoutCommand(service), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe(adapter, deliverycommand.NewDispatchWebhooksCommand(service), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe(adapter, deliverycommand.NewReleaseStuckCommand(service), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe(adapter, deliverycommand.NewReplayEventCommand(service), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe(adapter, deliverycommand.NewReplayDeliveryCommand(service), runnerOpts...)); err != nil {
		return nil, err
	}
	return group, nil
}

// RegisterDeliveryQueries registers and subscribes the read-side handlers.
// A nil reader skips its queries, so partial read surfaces are possible.
func RegisterDeliveryQueries(
	adapter *RegistryAdapter,
	events deliveryquery.EventReader,
	deliveries deliveryquery.DeliveryReader,
	endpoints deliveryquery.EndpointReader,
	runnerOpts ...runner.Option,
) (SubscriptionGroup, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if events == nil && deliveries == nil && endpoints == nil {
		return nil, fmt.Errorf("gocommand: at least one reader is required")
	}

	var group SubscriptionGroup
	register := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			group.Unsubscribe()
			return err
		}
		group = append(group, sub)
		return nil
	}

	if events != nil {
		if err := register(RegisterAndSubscribeQuery(adapter, deliveryquery.NewGetEventQuery(events), runnerOpts...)); err != nil {
			return nil, err
		}
		if err := register(RegisterAndSubscribeQuery(adapter, deliveryquery.NewEventStatsQuery(events), runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if deliveries != nil {
		if err := register(RegisterAndSubscribeQuery(adapter, deliveryquery.NewGetDeliveryQuery(deliveries), runnerOpts...)); err != nil {
			return nil, err
		}
		if err := register(RegisterAndSubscribeQuery(adapter, deliveryquery.NewDeliveryStatsQuery(deliveries), runnerOpts...)); err != nil {
			return nil, err
		}
	}
	if endpoints != nil {
		if err := register(RegisterAndSubscribeQuery(adapter, deliveryquery.NewGetEndpointQuery(endpoints), runnerOpts...)); err != nil {
			return nil, err
		}
		if err := register(RegisterAndSubscribeQuery(adapter, deliveryquery.NewListSubscribedEndpointsQuery(endpoints), runnerOpts...)); err != nil {
			return nil, err
		}
	}
	return group, nil
}
