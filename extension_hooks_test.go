package delivery

import (
	"context"
	"fmt"
	"testing"

	"github.com/goliatone/go-delivery/core"
	"github.com/goliatone/go-delivery/transport"
)

func TestExtensionHooks_TransportPackRegistrationAndApply(t *testing.T) {
	hooks := NewExtensionHooks()

	pack := TransportPack{
		Name:     "internal",
		Adapters: []core.TransportAdapter{transport.NewUnsupportedAdapter("grpc", "not yet supported")},
	}
	if err := hooks.RegisterTransportPack(pack); err != nil {
		t.Fatalf("register transport pack: %v", err)
	}
	if err := hooks.RegisterTransportPack(pack); err == nil {
		t.Fatalf("expected duplicate transport pack rejection")
	}
	if err := hooks.RegisterTransportPack(TransportPack{Name: "empty"}); err == nil {
		t.Fatalf("expected empty transport pack rejection")
	}

	registry := transport.NewRegistry()
	if err := hooks.ApplyTransportPacks(registry); err != nil {
		t.Fatalf("apply transport packs: %v", err)
	}
	if _, ok := registry.Get("grpc"); !ok {
		t.Fatalf("expected contributed adapter in registry")
	}
}

func TestExtensionHooks_EndpointPackSeedsWriter(t *testing.T) {
	hooks := NewExtensionHooks()

	endpoint := core.WebhookEndpoint{
		TenantID:   "acme",
		URL:        "https://hooks.example.com/orders",
		SecretRef:  "tenants/acme/orders",
		EventTypes: []string{"order.created"},
		Enabled:    true,
	}
	if err := hooks.RegisterEndpointPack(EndpointPack{Name: "acme-defaults", Endpoints: []core.WebhookEndpoint{endpoint}}); err != nil {
		t.Fatalf("register endpoint pack: %v", err)
	}
	if err := hooks.RegisterEndpointPack(EndpointPack{
		Name:      "bad",
		Endpoints: []core.WebhookEndpoint{{TenantID: "acme", URL: "http://insecure.example.com", SecretRef: "x"}},
	}); err == nil {
		t.Fatalf("expected invalid endpoint rejection")
	}

	writer := &capturingEndpointWriter{}
	if err := hooks.ApplyEndpointPacks(context.Background(), writer); err != nil {
		t.Fatalf("apply endpoint packs: %v", err)
	}
	if len(writer.saved) != 1 || writer.saved[0].URL != endpoint.URL {
		t.Fatalf("expected seeded endpoint, got %#v", writer.saved)
	}
}

func TestExtensionHooks_CommandQueryBundles(t *testing.T) {
	hooks := NewExtensionHooks()
	svc := &stubFacadeService{}

	if err := hooks.RegisterCommandQueryBundle("ops", func(service CommandQueryService) (any, error) {
		if service == nil {
			return nil, fmt.Errorf("service is required")
		}
		return "ops-bundle", nil
	}); err != nil {
		t.Fatalf("register bundle: %v", err)
	}
	if err := hooks.RegisterCommandQueryBundle("ops", func(CommandQueryService) (any, error) {
		return nil, nil
	}); err == nil {
		t.Fatalf("expected duplicate bundle rejection")
	}

	bundles, err := hooks.BuildCommandQueryBundles(svc)
	if err != nil {
		t.Fatalf("build bundles: %v", err)
	}
	if bundles["ops"] != "ops-bundle" {
		t.Fatalf("unexpected bundle output: %#v", bundles)
	}
	names := hooks.BundleNames()
	if len(names) != 1 || names[0] != "ops" {
		t.Fatalf("unexpected bundle names: %#v", names)
	}
}

type capturingEndpointWriter struct {
	saved []core.WebhookEndpoint
}

func (w *capturingEndpointWriter) SaveEndpoint(_ context.Context, endpoint core.WebhookEndpoint) (core.WebhookEndpoint, error) {
	w.saved = append(w.saved, endpoint)
	return endpoint, nil
}
