package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig     Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	outboxStore       OutboxStore
	deliveryStore     DeliveryStore
	endpointStore     EndpointStore
	secretStore       SecretStore
	eventTransport    EventTransport
	webhookSender     WebhookSender
	featureFlags      FeatureFlags
	readinessGuard    ReadinessGuard
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithOutboxStore(store OutboxStore) Option {
	return func(b *serviceBuilder) {
		b.outboxStore = store
	}
}

func WithDeliveryStore(store DeliveryStore) Option {
	return func(b *serviceBuilder) {
		b.deliveryStore = store
	}
}

func WithEndpointStore(store EndpointStore) Option {
	return func(b *serviceBuilder) {
		b.endpointStore = store
	}
}

func WithSecretStore(store SecretStore) Option {
	return func(b *serviceBuilder) {
		b.secretStore = store
	}
}

func WithEventTransport(transport EventTransport) Option {
	return func(b *serviceBuilder) {
		b.eventTransport = transport
	}
}

func WithWebhookSender(sender WebhookSender) Option {
	return func(b *serviceBuilder) {
		b.webhookSender = sender
	}
}

func WithFeatureFlags(flags FeatureFlags) Option {
	return func(b *serviceBuilder) {
		b.featureFlags = flags
	}
}

func WithReadinessGuard(guard ReadinessGuard) Option {
	return func(b *serviceBuilder) {
		b.readinessGuard = guard
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("delivery", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		featureFlags:    StaticFlags{Outbox: true, Webhooks: true},
		readinessGuard:  AlwaysReady{},
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return deliveryErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	outbox := map[string]any{}
	if includeZero || cfg.Outbox.BatchSize != 0 {
		outbox["batch_size"] = cfg.Outbox.BatchSize
	}
	if includeZero || cfg.Outbox.MaxAttempts != 0 {
		outbox["max_attempts"] = cfg.Outbox.MaxAttempts
	}
	if includeZero || cfg.Outbox.InitialBackoff != 0 {
		outbox["initial_backoff"] = cfg.Outbox.InitialBackoff
	}
	if includeZero || cfg.Outbox.MaxBackoff != 0 {
		outbox["max_backoff"] = cfg.Outbox.MaxBackoff
	}
	if includeZero || cfg.Outbox.Interval != 0 {
		outbox["interval"] = cfg.Outbox.Interval
	}
	if includeZero || cfg.Outbox.ProcessingTimeout != 0 {
		outbox["processing_timeout"] = cfg.Outbox.ProcessingTimeout
	}
	if len(outbox) > 0 {
		layer["outbox"] = outbox
	}

	webhooks := map[string]any{}
	if includeZero || cfg.Webhooks.BatchSize != 0 {
		webhooks["batch_size"] = cfg.Webhooks.BatchSize
	}
	if includeZero || cfg.Webhooks.DefaultMaxAttempts != 0 {
		webhooks["default_max_attempts"] = cfg.Webhooks.DefaultMaxAttempts
	}
	if includeZero || cfg.Webhooks.DefaultTimeout != 0 {
		webhooks["default_timeout"] = cfg.Webhooks.DefaultTimeout
	}
	if includeZero || cfg.Webhooks.DefaultBackoffBase != 0 {
		webhooks["default_backoff_base"] = cfg.Webhooks.DefaultBackoffBase
	}
	if includeZero || cfg.Webhooks.MaxBackoff != 0 {
		webhooks["max_backoff"] = cfg.Webhooks.MaxBackoff
	}
	if includeZero || cfg.Webhooks.Interval != 0 {
		webhooks["interval"] = cfg.Webhooks.Interval
	}
	if includeZero || cfg.Webhooks.FanoutBatchSize != 0 {
		webhooks["fanout_batch_size"] = cfg.Webhooks.FanoutBatchSize
	}
	if includeZero || cfg.Webhooks.ProcessingTimeout != 0 {
		webhooks["processing_timeout"] = cfg.Webhooks.ProcessingTimeout
	}
	if len(webhooks) > 0 {
		layer["webhooks"] = webhooks
	}
	return layer
}
