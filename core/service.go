package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

// Service orchestrates the outbox drain, webhook fanout, and webhook
// delivery pipelines on top of pluggable stores and transports.
type Service struct {
	config            Config
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
	now               func() time.Time
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	OutboxStore       OutboxStore
	DeliveryStore     DeliveryStore
	EndpointStore     EndpointStore
	SecretStore       SecretStore
	EventTransport    EventTransport
	WebhookSender     WebhookSender
	FeatureFlags      FeatureFlags
	ReadinessGuard    ReadinessGuard
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("delivery", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("delivery"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.featureFlags == nil {
		builder.featureFlags = StaticFlags{Outbox: true, Webhooks: true}
	}
	if builder.readinessGuard == nil {
		builder.readinessGuard = AlwaysReady{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	missingStore := builder.outboxStore == nil ||
		builder.deliveryStore == nil ||
		builder.endpointStore == nil
	if missingStore && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			storeProvider, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if storeProvider != nil {
				if builder.outboxStore == nil {
					builder.outboxStore = storeProvider.OutboxStore()
				}
				if builder.deliveryStore == nil {
					builder.deliveryStore = storeProvider.DeliveryStore()
				}
				if builder.endpointStore == nil {
					builder.endpointStore = storeProvider.EndpointStore()
				}
			}
		} else if storeProvider, ok := builder.repositoryFactory.(StoreProvider); ok {
			if builder.outboxStore == nil {
				builder.outboxStore = storeProvider.OutboxStore()
			}
			if builder.deliveryStore == nil {
				builder.deliveryStore = storeProvider.DeliveryStore()
			}
			if builder.endpointStore == nil {
				builder.endpointStore = storeProvider.EndpointStore()
			}
		}
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		outboxStore:       builder.outboxStore,
		deliveryStore:     builder.deliveryStore,
		endpointStore:     builder.endpointStore,
		secretStore:       builder.secretStore,
		eventTransport:    builder.eventTransport,
		webhookSender:     builder.webhookSender,
		featureFlags:      builder.featureFlags,
		readinessGuard:    builder.readinessGuard,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		OutboxStore:       s.outboxStore,
		DeliveryStore:     s.deliveryStore,
		EndpointStore:     s.endpointStore,
		SecretStore:       s.secretStore,
		EventTransport:    s.eventTransport,
		WebhookSender:     s.webhookSender,
		FeatureFlags:      s.featureFlags,
		ReadinessGuard:    s.readinessGuard,
	}
}

// EnqueueEvent records a new outbox event. The caller is expected to invoke
// it inside the same transaction as the business mutation by passing a
// transactional store; the service itself only fills defaults and validates.
func (s *Service) EnqueueEvent(ctx context.Context, event OutboxEvent) (stored OutboxEvent, err error) {
	startedAt := s.clock()
	fields := map[string]any{
		"tenant_id":  event.TenantID,
		"event_type": event.EventType,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "enqueue_event", err, fields)
	}()

	if s == nil || s.outboxStore == nil {
		err = s.mapError(fmt.Errorf("core: outbox store is required"))
		return OutboxEvent{}, err
	}

	now := s.clock()
	if strings.TrimSpace(event.ID) == "" {
		event.ID = uuid.NewString()
	}
	if strings.TrimSpace(event.EventID) == "" {
		event.EventID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now
	}
	if event.Status == "" {
		event.Status = OutboxStatusPending
	}
	event.CreatedAt = now
	event.UpdatedAt = now

	if err = event.Validate(); err != nil {
		err = s.mapError(err)
		return OutboxEvent{}, err
	}
	if err = s.outboxStore.StoreEvent(ctx, event); err != nil {
		err = s.mapError(err)
		return OutboxEvent{}, err
	}
	fields["event_id"] = event.EventID
	return event, nil
}

// DispatchOutbox claims one batch of due outbox events and publishes them
// through the configured event transport. Batch size zero uses the
// configured default.
func (s *Service) DispatchOutbox(ctx context.Context, batchSize int) (stats DispatchStats, err error) {
	startedAt := s.clock()
	fields := map[string]any{}
	defer func() {
		fields["claimed"] = stats.Claimed
		fields["published"] = stats.Published
		fields["retried"] = stats.Retried
		fields["dead_lettered"] = stats.DeadLettered
		s.observeOperation(ctx, startedAt, "dispatch_outbox", err, fields)
		s.recordDispatchOutcome(ctx, "outbox", stats)
	}()

	if s == nil || s.outboxStore == nil {
		err = s.mapError(fmt.Errorf("core: outbox store is required"))
		return DispatchStats{}, err
	}
	if !s.featureFlags.IsOutboxProcessingEnabled(ctx) {
		return DispatchStats{}, nil
	}

	limit := batchSize
	if limit <= 0 {
		limit = s.config.Outbox.BatchSize
	}
	events, claimErr := s.outboxStore.ClaimPending(ctx, limit)
	if claimErr != nil {
		err = s.mapError(claimErr)
		return DispatchStats{}, err
	}

	stats = DispatchStats{Claimed: len(events)}
	var dispatchErr error
	for _, event := range events {
		publishErr := s.publishOne(ctx, event)
		if publishErr == nil {
			if ackErr := s.outboxStore.MarkPublished(ctx, event.ID, s.clock()); ackErr != nil {
				dispatchErr = joinErrors(dispatchErr, ackErr)
				continue
			}
			stats.Published++
			continue
		}

		dispatchErr = joinErrors(dispatchErr, publishErr)
		attempt := event.Attempts + 1
		if attempt >= s.config.Outbox.MaxAttempts {
			if dlErr := s.outboxStore.MarkDeadLetter(ctx, event.ID, publishErr.Error()); dlErr != nil {
				dispatchErr = joinErrors(dispatchErr, dlErr)
				continue
			}
			stats.DeadLettered++
			continue
		}
		nextAttemptAt := s.clock().Add(backoffDelay(s.config.Outbox.InitialBackoff, s.config.Outbox.MaxBackoff, attempt))
		if failErr := s.outboxStore.MarkFailed(ctx, event.ID, publishErr.Error(), nextAttemptAt); failErr != nil {
			dispatchErr = joinErrors(dispatchErr, failErr)
			continue
		}
		stats.Retried++
	}

	if dispatchErr != nil {
		err = s.mapError(dispatchErr)
	}
	return stats, err
}

func (s *Service) publishOne(ctx context.Context, event OutboxEvent) error {
	if s.eventTransport == nil {
		// No broker configured; publication is a durable state flip and the
		// event becomes visible to fanout only.
		return nil
	}
	if err := s.eventTransport.Publish(ctx, event); err != nil {
		return fmt.Errorf("core: transport %q publish failed for event %q: %w", s.eventTransport.Kind(), event.EventID, err)
	}
	return nil
}

// ExpandFanout turns published events into one pending delivery row per
// subscribed endpoint. Re-running after a partial failure is safe; duplicate
// rows are absorbed by the delivery store.
func (s *Service) ExpandFanout(ctx context.Context, batchSize int) (stats FanoutStats, err error) {
	startedAt := s.clock()
	fields := map[string]any{}
	defer func() {
		fields["scanned"] = stats.Scanned
		fields["created"] = stats.Created
		fields["deduped"] = stats.Deduped
		s.observeOperation(ctx, startedAt, "expand_fanout", err, fields)
		s.recordFanoutOutcome(ctx, stats)
	}()

	if s == nil || s.outboxStore == nil || s.deliveryStore == nil || s.endpointStore == nil {
		err = s.mapError(fmt.Errorf("core: fanout requires outbox, delivery, and endpoint stores"))
		return FanoutStats{}, err
	}
	if !s.featureFlags.IsWebhookProcessingEnabled(ctx) {
		return FanoutStats{}, nil
	}

	limit := batchSize
	if limit <= 0 {
		limit = s.config.Webhooks.FanoutBatchSize
	}
	events, listErr := s.outboxStore.ListUnexpanded(ctx, limit)
	if listErr != nil {
		err = s.mapError(listErr)
		return FanoutStats{}, err
	}

	var fanoutErr error
	for _, event := range events {
		stats.Scanned++
		endpoints, epErr := s.endpointStore.ListSubscribed(ctx, event.TenantID, event.EventType)
		if epErr != nil {
			fanoutErr = joinErrors(fanoutErr, epErr)
			continue
		}

		expanded := true
		for _, endpoint := range endpoints {
			delivery := WebhookDelivery{
				ID:            uuid.NewString(),
				TenantID:      event.TenantID,
				EndpointID:    endpoint.ID,
				OutboxEventID: event.ID,
				EventType:     event.EventType,
				CorrelationID: event.CorrelationID,
				Status:        DeliveryStatusPending,
				QueuedAt:      s.clock(),
			}
			created, createErr := s.deliveryStore.CreateDelivery(ctx, delivery)
			if createErr != nil {
				fanoutErr = joinErrors(fanoutErr, createErr)
				expanded = false
				continue
			}
			if created {
				stats.Created++
			} else {
				stats.Deduped++
			}
		}
		if !expanded {
			continue
		}
		if markErr := s.outboxStore.MarkExpanded(ctx, event.ID, s.clock()); markErr != nil {
			fanoutErr = joinErrors(fanoutErr, markErr)
		}
	}

	if fanoutErr != nil {
		err = s.mapError(fanoutErr)
	}
	return stats, err
}

// DispatchWebhooks claims one batch of due deliveries and attempts each once
// through the webhook sender. Per-endpoint retry policy decides whether a
// failure reschedules or dead-letters the row.
func (s *Service) DispatchWebhooks(ctx context.Context, batchSize int) (stats DispatchStats, err error) {
	startedAt := s.clock()
	fields := map[string]any{}
	defer func() {
		fields["claimed"] = stats.Claimed
		fields["delivered"] = stats.Delivered
		fields["retried"] = stats.Retried
		fields["dead_lettered"] = stats.DeadLettered
		s.observeOperation(ctx, startedAt, "dispatch_webhooks", err, fields)
		s.recordDispatchOutcome(ctx, "webhooks", stats)
	}()

	if s == nil || s.deliveryStore == nil || s.endpointStore == nil || s.outboxStore == nil {
		err = s.mapError(fmt.Errorf("core: webhook dispatch requires outbox, delivery, and endpoint stores"))
		return DispatchStats{}, err
	}
	if s.webhookSender == nil {
		err = s.mapError(fmt.Errorf("core: webhook sender is required"))
		return DispatchStats{}, err
	}
	if !s.featureFlags.IsWebhookProcessingEnabled(ctx) {
		return DispatchStats{}, nil
	}

	limit := batchSize
	if limit <= 0 {
		limit = s.config.Webhooks.BatchSize
	}
	deliveries, claimErr := s.deliveryStore.ClaimPending(ctx, limit)
	if claimErr != nil {
		err = s.mapError(claimErr)
		return DispatchStats{}, err
	}

	stats = DispatchStats{Claimed: len(deliveries)}
	var dispatchErr error
	for _, delivery := range deliveries {
		outcome, attemptErr := s.attemptDelivery(ctx, delivery)
		switch outcome {
		case deliveryOutcomeDelivered:
			stats.Delivered++
		case deliveryOutcomeRetried:
			stats.Retried++
		case deliveryOutcomeDeadLettered:
			stats.DeadLettered++
		}
		if attemptErr != nil {
			dispatchErr = joinErrors(dispatchErr, attemptErr)
		}
	}

	if dispatchErr != nil {
		err = s.mapError(dispatchErr)
	}
	return stats, err
}

type deliveryOutcome int

const (
	deliveryOutcomeNone deliveryOutcome = iota
	deliveryOutcomeDelivered
	deliveryOutcomeRetried
	deliveryOutcomeDeadLettered
)

func (s *Service) attemptDelivery(ctx context.Context, delivery WebhookDelivery) (deliveryOutcome, error) {
	endpoint, err := s.endpointStore.GetEndpoint(ctx, delivery.EndpointID)
	if err != nil {
		return s.recordLookupFailure(ctx, delivery, err, fmt.Sprintf("core: endpoint lookup failed: %v", err))
	}
	event, err := s.outboxStore.GetEvent(ctx, delivery.OutboxEventID)
	if err != nil {
		return s.recordLookupFailure(ctx, delivery, err, fmt.Sprintf("core: event lookup failed: %v", err))
	}

	attempt := delivery.Attempts + 1
	result, sendErr := s.webhookSender.Send(ctx, WebhookSendRequest{
		Endpoint: endpoint,
		Delivery: delivery,
		Event:    event,
		Attempt:  attempt,
	})
	if sendErr == nil {
		if ackErr := s.deliveryStore.MarkDelivered(ctx, delivery.ID, result.StatusCode, s.clock()); ackErr != nil {
			return deliveryOutcomeDelivered, ackErr
		}
		return deliveryOutcomeDelivered, nil
	}

	maxAttempts := endpoint.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = s.config.Webhooks.DefaultMaxAttempts
	}
	backoffBase := endpoint.BackoffBase
	if backoffBase <= 0 {
		backoffBase = s.config.Webhooks.DefaultBackoffBase
	}

	if attempt >= maxAttempts {
		if dlErr := s.deliveryStore.MarkDeadLetter(ctx, delivery.ID, result.StatusCode, sendErr.Error()); dlErr != nil {
			return deliveryOutcomeDeadLettered, joinErrors(sendErr, dlErr)
		}
		return deliveryOutcomeDeadLettered, sendErr
	}
	nextAttemptAt := s.clock().Add(backoffDelay(backoffBase, s.config.Webhooks.MaxBackoff, attempt))
	if failErr := s.deliveryStore.MarkFailed(ctx, delivery.ID, result.StatusCode, sendErr.Error(), nextAttemptAt); failErr != nil {
		return deliveryOutcomeRetried, joinErrors(sendErr, failErr)
	}
	return deliveryOutcomeRetried, sendErr
}

// recordLookupFailure settles a delivery whose endpoint or event could not
// be resolved. A missing row is unrecoverable and dead-letters immediately;
// any other lookup error consumes one attempt from the retry budget, since
// the store may simply be unreachable. The endpoint config is unavailable
// here, so the configured defaults bound attempts and backoff.
func (s *Service) recordLookupFailure(ctx context.Context, delivery WebhookDelivery, lookupErr error, cause string) (deliveryOutcome, error) {
	attempt := delivery.Attempts + 1
	gone := errors.Is(lookupErr, ErrEndpointNotFound) || errors.Is(lookupErr, ErrEventNotFound)
	if gone || attempt >= s.config.Webhooks.DefaultMaxAttempts {
		if dlErr := s.deliveryStore.MarkDeadLetter(ctx, delivery.ID, 0, cause); dlErr != nil {
			return deliveryOutcomeDeadLettered, joinErrors(lookupErr, dlErr)
		}
		return deliveryOutcomeDeadLettered, lookupErr
	}
	nextAttemptAt := s.clock().Add(backoffDelay(s.config.Webhooks.DefaultBackoffBase, s.config.Webhooks.MaxBackoff, attempt))
	if failErr := s.deliveryStore.MarkFailed(ctx, delivery.ID, 0, cause, nextAttemptAt); failErr != nil {
		return deliveryOutcomeRetried, joinErrors(lookupErr, failErr)
	}
	return deliveryOutcomeRetried, lookupErr
}

// ReleaseStuck returns processing rows abandoned by crashed claimants to
// pending on both pipelines.
func (s *Service) ReleaseStuck(ctx context.Context) (released int, err error) {
	startedAt := s.clock()
	fields := map[string]any{}
	defer func() {
		fields["released"] = released
		s.observeOperation(ctx, startedAt, "release_stuck", err, fields)
	}()

	if s == nil || s.outboxStore == nil || s.deliveryStore == nil {
		err = s.mapError(fmt.Errorf("core: release requires outbox and delivery stores"))
		return 0, err
	}

	outboxCutoff := s.clock().Add(-s.config.Outbox.ProcessingTimeout)
	count, relErr := s.outboxStore.ReleaseStuckProcessing(ctx, outboxCutoff, s.config.Outbox.BatchSize)
	released += count
	if relErr != nil {
		err = s.mapError(relErr)
		return released, err
	}

	deliveryCutoff := s.clock().Add(-s.config.Webhooks.ProcessingTimeout)
	count, relErr = s.deliveryStore.ReleaseStuckProcessing(ctx, deliveryCutoff, s.config.Webhooks.BatchSize)
	released += count
	if relErr != nil {
		err = s.mapError(relErr)
	}
	return released, err
}

// ReplayEvent resets a dead-lettered outbox event to pending so the next
// dispatch cycle picks it up again.
func (s *Service) ReplayEvent(ctx context.Context, id string) (err error) {
	startedAt := s.clock()
	fields := map[string]any{"event_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "replay_event", err, fields)
	}()

	if s == nil || s.outboxStore == nil {
		err = s.mapError(fmt.Errorf("core: outbox store is required"))
		return err
	}
	if strings.TrimSpace(id) == "" {
		err = s.mapError(fmt.Errorf("core: event id is required"))
		return err
	}
	if err = s.outboxStore.ReplayEvent(ctx, id); err != nil {
		err = s.mapError(err)
	}
	return err
}

// ReplayDelivery resets a dead-lettered webhook delivery to pending.
func (s *Service) ReplayDelivery(ctx context.Context, id string) (err error) {
	startedAt := s.clock()
	fields := map[string]any{"delivery_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "replay_delivery", err, fields)
	}()

	if s == nil || s.deliveryStore == nil {
		err = s.mapError(fmt.Errorf("core: delivery store is required"))
		return err
	}
	if strings.TrimSpace(id) == "" {
		err = s.mapError(fmt.Errorf("core: delivery id is required"))
		return err
	}
	if err = s.deliveryStore.ReplayDelivery(ctx, id); err != nil {
		err = s.mapError(err)
	}
	return err
}

func (s *Service) EventStats(ctx context.Context, tenantID string) (EventStats, error) {
	if s == nil || s.outboxStore == nil {
		return EventStats{}, s.mapError(fmt.Errorf("core: outbox store is required"))
	}
	stats, err := s.outboxStore.EventStats(ctx, tenantID)
	if err != nil {
		return EventStats{}, s.mapError(err)
	}
	return stats, nil
}

func (s *Service) DeliveryStats(ctx context.Context, tenantID string) (DeliveryStats, error) {
	if s == nil || s.deliveryStore == nil {
		return DeliveryStats{}, s.mapError(fmt.Errorf("core: delivery store is required"))
	}
	stats, err := s.deliveryStore.DeliveryStats(ctx, tenantID)
	if err != nil {
		return DeliveryStats{}, s.mapError(err)
	}
	return stats, nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) clock() time.Time {
	if s == nil || s.now == nil {
		return time.Now().UTC()
	}
	return s.now()
}

func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	multiplier := math.Pow(2, float64(attempt-1))
	next := time.Duration(float64(base) * multiplier)
	if next < 0 || next > max {
		return max
	}
	return next
}

func joinErrors(existing error, next error) error {
	if existing == nil {
		return next
	}
	if next == nil {
		return existing
	}
	return fmt.Errorf("%w; %v", existing, next)
}
