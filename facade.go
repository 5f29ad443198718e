package delivery

import (
	"fmt"
	"reflect"

	deliverycommand "github.com/goliatone/go-delivery/command"
	"github.com/goliatone/go-delivery/core"
	deliveryquery "github.com/goliatone/go-delivery/query"
)

// CommandQueryService is the service surface the facade wraps: the mutating
// pipeline operations plus access to the wired dependencies, which supply the
// read-side stores.
type CommandQueryService interface {
	deliverycommand.MutatingService
	Dependencies() core.ServiceDependencies
}

type Commands struct {
	EnqueueEvent     *deliverycommand.EnqueueEventCommand
	DispatchOutbox   *deliverycommand.DispatchOutboxCommand
	ExpandFanout     *deliverycommand.ExpandFanoutCommand
	DispatchWebhooks *deliverycommand.DispatchWebhooksCommand
	ReleaseStuck     *deliverycommand.ReleaseStuckCommand
	ReplayEvent      *deliverycommand.ReplayEventCommand
	ReplayDelivery   *deliverycommand.ReplayDeliveryCommand
}

type Queries struct {
	GetEvent                *deliveryquery.GetEventQuery
	EventStats              *deliveryquery.EventStatsQuery
	GetDelivery             *deliveryquery.GetDeliveryQuery
	DeliveryStats           *deliveryquery.DeliveryStatsQuery
	GetEndpoint             *deliveryquery.GetEndpointQuery
	ListSubscribedEndpoints *deliveryquery.ListSubscribedEndpointsQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	eventReader    deliveryquery.EventReader
	deliveryReader deliveryquery.DeliveryReader
	endpointReader deliveryquery.EndpointReader
}

func WithEventReader(reader deliveryquery.EventReader) FacadeOption {
	return func(options *facadeOptions) {
		options.eventReader = reader
	}
}

func WithDeliveryReader(reader deliveryquery.DeliveryReader) FacadeOption {
	return func(options *facadeOptions) {
		options.deliveryReader = reader
	}
}

func WithEndpointReader(reader deliveryquery.EndpointReader) FacadeOption {
	return func(options *facadeOptions) {
		options.endpointReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("delivery: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	deps := service.Dependencies()
	eventReader := cfg.eventReader
	if eventReader == nil && deps.OutboxStore != nil {
		eventReader = deps.OutboxStore
	}
	deliveryReader := cfg.deliveryReader
	if deliveryReader == nil && deps.DeliveryStore != nil {
		deliveryReader = deps.DeliveryStore
	}
	endpointReader := cfg.endpointReader
	if endpointReader == nil {
		endpointReader = resolveEndpointReader(deps)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		EnqueueEvent:     deliverycommand.NewEnqueueEventCommand(service),
		DispatchOutbox:   deliverycommand.NewDispatchOutboxCommand(service),
		ExpandFanout:     deliverycommand.NewExpandFanoutCommand(service),
		DispatchWebhooks: deliverycommand.NewDispatchWebhooksCommand(service),
		ReleaseStuck:     deliverycommand.NewReleaseStuckCommand(service),
		ReplayEvent:      deliverycommand.NewReplayEventCommand(service),
		ReplayDelivery:   deliverycommand.NewReplayDeliveryCommand(service),
	}
	facade.queries = Queries{
		GetEvent:                deliveryquery.NewGetEventQuery(eventReader),
		EventStats:              deliveryquery.NewEventStatsQuery(eventReader),
		GetDelivery:             deliveryquery.NewGetDeliveryQuery(deliveryReader),
		DeliveryStats:           deliveryquery.NewDeliveryStatsQuery(deliveryReader),
		GetEndpoint:             deliveryquery.NewGetEndpointQuery(endpointReader),
		ListSubscribedEndpoints: deliveryquery.NewListSubscribedEndpointsQuery(endpointReader),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

// resolveEndpointReader prefers the wired endpoint store and falls back to a
// repository factory that can build one, e.g. when only the factory was
// injected and stores are constructed lazily.
func resolveEndpointReader(deps core.ServiceDependencies) deliveryquery.EndpointReader {
	if deps.EndpointStore != nil {
		return deps.EndpointStore
	}
	if deps.RepositoryFactory == nil {
		return nil
	}

	factoryValue := reflect.ValueOf(deps.RepositoryFactory)
	if !factoryValue.IsValid() {
		return nil
	}
	if factoryValue.Kind() == reflect.Ptr && factoryValue.IsNil() {
		return nil
	}
	method := factoryValue.MethodByName("EndpointStore")
	if !method.IsValid() || method.Type().NumIn() != 0 || method.Type().NumOut() != 1 {
		return nil
	}

	results, ok := safeReflectCall(method)
	if !ok {
		return nil
	}
	if len(results) != 1 {
		return nil
	}
	candidate := results[0]
	if !candidate.IsValid() {
		return nil
	}
	if candidate.Kind() == reflect.Ptr && candidate.IsNil() {
		return nil
	}
	reader, ok := candidate.Interface().(deliveryquery.EndpointReader)
	if !ok {
		return nil
	}
	return reader
}

func safeReflectCall(method reflect.Value) (_ []reflect.Value, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return method.Call(nil), true
}
