package delivery

import "github.com/goliatone/go-delivery/core"

type Config = core.Config

type OutboxConfig = core.OutboxConfig

type WebhookConfig = core.WebhookConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type OutboxStore = core.OutboxStore
type DeliveryStore = core.DeliveryStore
type EndpointStore = core.EndpointStore
type SecretStore = core.SecretStore
type EventTransport = core.EventTransport
type TransportAdapter = core.TransportAdapter
type WebhookSender = core.WebhookSender
type FeatureFlags = core.FeatureFlags
type ReadinessGuard = core.ReadinessGuard
type MetricsRecorder = core.MetricsRecorder

type OutboxEvent = core.OutboxEvent
type WebhookEndpoint = core.WebhookEndpoint
type WebhookDelivery = core.WebhookDelivery

type EventStats = core.EventStats
type DeliveryStats = core.DeliveryStats
type DispatchStats = core.DispatchStats
type FanoutStats = core.FanoutStats

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithOutboxStore       = core.WithOutboxStore
	WithDeliveryStore     = core.WithDeliveryStore
	WithEndpointStore     = core.WithEndpointStore
	WithSecretStore       = core.WithSecretStore
	WithEventTransport    = core.WithEventTransport
	WithWebhookSender     = core.WithWebhookSender
	WithFeatureFlags      = core.WithFeatureFlags
	WithReadinessGuard    = core.WithReadinessGuard
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
