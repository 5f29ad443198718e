package delivery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-delivery/core"
)

// TransportPack is a named group of transport adapters a host application
// contributes, e.g. an internal RPC adapter next to the built-in REST one.
type TransportPack struct {
	Name     string
	Adapters []core.TransportAdapter
}

// EndpointPack is a named group of webhook endpoints seeded at startup,
// typically the fixed endpoints of a single-tenant install.
type EndpointPack struct {
	Name      string
	Endpoints []core.WebhookEndpoint
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

// TransportRegistrar accepts contributed transport adapters. The transport
// package registry satisfies this.
type TransportRegistrar interface {
	Register(adapter core.TransportAdapter) error
}

// EndpointWriter persists seeded endpoints. The SQL endpoint store satisfies
// this.
type EndpointWriter interface {
	SaveEndpoint(ctx context.Context, endpoint core.WebhookEndpoint) (core.WebhookEndpoint, error)
}

type ExtensionHooks struct {
	mu sync.RWMutex

	transportPacks map[string]TransportPack
	endpointPacks  map[string]EndpointPack
	bundles        map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		transportPacks: map[string]TransportPack{},
		endpointPacks:  map[string]EndpointPack{},
		bundles:        map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterTransportPack(pack TransportPack) error {
	if h == nil {
		return fmt.Errorf("delivery: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("delivery: transport pack name is required")
	}
	if len(pack.Adapters) == 0 {
		return fmt.Errorf("delivery: transport pack %q has no adapters", name)
	}

	normalized := TransportPack{
		Name:     name,
		Adapters: append([]core.TransportAdapter(nil), pack.Adapters...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.transportPacks[name]; exists {
		return fmt.Errorf("delivery: transport pack %q already registered", name)
	}
	h.transportPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterEndpointPack(pack EndpointPack) error {
	if h == nil {
		return fmt.Errorf("delivery: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("delivery: endpoint pack name is required")
	}
	if len(pack.Endpoints) == 0 {
		return fmt.Errorf("delivery: endpoint pack %q has no endpoints", name)
	}
	for _, endpoint := range pack.Endpoints {
		if err := endpoint.Validate(); err != nil {
			return fmt.Errorf("delivery: endpoint pack %q: %w", name, err)
		}
	}

	normalized := EndpointPack{
		Name:      name,
		Endpoints: append([]core.WebhookEndpoint(nil), pack.Endpoints...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.endpointPacks[name]; exists {
		return fmt.Errorf("delivery: endpoint pack %q already registered", name)
	}
	h.endpointPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("delivery: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("delivery: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("delivery: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("delivery: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

func (h *ExtensionHooks) ApplyTransportPacks(registrar TransportRegistrar) error {
	if h == nil {
		return nil
	}
	if registrar == nil {
		return fmt.Errorf("delivery: transport registrar is required")
	}

	packs := h.TransportPacks()
	for _, pack := range packs {
		for _, adapter := range pack.Adapters {
			if adapter == nil {
				return fmt.Errorf("delivery: transport pack %q contains nil adapter", pack.Name)
			}
			if err := registrar.Register(adapter); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *ExtensionHooks) ApplyEndpointPacks(ctx context.Context, writer EndpointWriter) error {
	if h == nil {
		return nil
	}
	if writer == nil {
		return fmt.Errorf("delivery: endpoint writer is required")
	}

	packs := h.EndpointPacks()
	for _, pack := range packs {
		for _, endpoint := range pack.Endpoints {
			if _, err := writer.SaveEndpoint(ctx, endpoint); err != nil {
				return fmt.Errorf("delivery: endpoint pack %q: %w", pack.Name, err)
			}
		}
	}
	return nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(
	service CommandQueryService,
) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("delivery: command/query service is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) TransportPacks() []TransportPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.transportPacks))
	for name := range h.transportPacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]TransportPack, 0, len(names))
	for _, name := range names {
		pack := h.transportPacks[name]
		out = append(out, TransportPack{
			Name:     pack.Name,
			Adapters: append([]core.TransportAdapter(nil), pack.Adapters...),
		})
	}
	return out
}

func (h *ExtensionHooks) EndpointPacks() []EndpointPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.endpointPacks))
	for name := range h.endpointPacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]EndpointPack, 0, len(names))
	for _, name := range names {
		pack := h.endpointPacks[name]
		out = append(out, EndpointPack{
			Name:      pack.Name,
			Endpoints: append([]core.WebhookEndpoint(nil), pack.Endpoints...),
		})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
