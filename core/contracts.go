package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// OutboxStore persists outbox events and hands out disjoint claim batches to
// concurrent dispatcher instances. Cross-process exclusion is delegated
// entirely to the store's row-locking primitive; callers never hold locks.
type OutboxStore interface {
	// StoreEvent inserts an event. A second insert with the same
	// (tenant_id, idempotency_key) pair is absorbed silently.
	StoreEvent(ctx context.Context, event OutboxEvent) error
	// ClaimPending atomically selects due pending/failed rows oldest-first,
	// skipping rows locked by concurrent claimants, and flips them to
	// processing. Two concurrent calls never return overlapping rows.
	ClaimPending(ctx context.Context, limit int) ([]OutboxEvent, error)
	GetEvent(ctx context.Context, id string) (OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	MarkFailed(ctx context.Context, id string, cause string, nextAttemptAt time.Time) error
	MarkDeadLetter(ctx context.Context, id string, cause string) error
	// ListUnexpanded returns published events that fanout has not yet
	// expanded into delivery rows.
	ListUnexpanded(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkExpanded(ctx context.Context, id string, expandedAt time.Time) error
	// ReleaseStuckProcessing returns processing rows older than the cutoff
	// to pending so a crashed claimant's batch is eventually retried.
	ReleaseStuckProcessing(ctx context.Context, olderThan time.Time, limit int) (int, error)
	// ReplayEvent resets a dead-lettered event to pending.
	ReplayEvent(ctx context.Context, id string) error
	EventStats(ctx context.Context, tenantID string) (EventStats, error)
}

// DeliveryStore persists per-endpoint webhook deliveries with the same
// skip-locked claim discipline as the outbox store.
type DeliveryStore interface {
	// CreateDelivery inserts a delivery row. Returns false when a row for
	// the (endpoint_id, outbox_event_id) pair already exists.
	CreateDelivery(ctx context.Context, delivery WebhookDelivery) (bool, error)
	ClaimPending(ctx context.Context, limit int) ([]WebhookDelivery, error)
	GetDelivery(ctx context.Context, id string) (WebhookDelivery, error)
	MarkDelivered(ctx context.Context, id string, responseCode int, deliveredAt time.Time) error
	MarkFailed(ctx context.Context, id string, responseCode int, cause string, nextAttemptAt time.Time) error
	MarkDeadLetter(ctx context.Context, id string, responseCode int, cause string) error
	ReleaseStuckProcessing(ctx context.Context, olderThan time.Time, limit int) (int, error)
	ReplayDelivery(ctx context.Context, id string) error
	DeliveryStats(ctx context.Context, tenantID string) (DeliveryStats, error)
}

// EndpointStore supplies webhook endpoint configuration. Endpoints are
// mutated by an external management surface; this library only reads them.
type EndpointStore interface {
	GetEndpoint(ctx context.Context, id string) (WebhookEndpoint, error)
	// ListSubscribed returns enabled endpoints in the tenant subscribed to
	// the event type.
	ListSubscribed(ctx context.Context, tenantID string, eventType string) ([]WebhookEndpoint, error)
}

// SecretStore resolves an opaque secret reference to the current live secret
// value. Raw secrets are never persisted by this library.
type SecretStore interface {
	GetSecret(ctx context.Context, secretRef string) (string, error)
}

// EventTransport publishes claimed outbox events downstream. A no-op
// transport satisfies this for environments without a real broker.
type EventTransport interface {
	Kind() string
	Publish(ctx context.Context, event OutboxEvent) error
}

// FeatureFlags gates background processing at runtime.
type FeatureFlags interface {
	IsOutboxProcessingEnabled(ctx context.Context) bool
	IsWebhookProcessingEnabled(ctx context.Context) bool
}

// StaticFlags is a FeatureFlags implementation backed by fixed values.
type StaticFlags struct {
	Outbox   bool
	Webhooks bool
}

func (f StaticFlags) IsOutboxProcessingEnabled(context.Context) bool  { return f.Outbox }
func (f StaticFlags) IsWebhookProcessingEnabled(context.Context) bool { return f.Webhooks }

// ReadinessGuard lets the host process veto background cycles, e.g. while
// draining before shutdown or before migrations have applied.
type ReadinessGuard interface {
	ShouldRunBackgroundJob(ctx context.Context, name string) bool
}

// AlwaysReady is a ReadinessGuard that never vetoes.
type AlwaysReady struct{}

func (AlwaysReady) ShouldRunBackgroundJob(context.Context, string) bool { return true }

// TransportRequest is the outbound HTTP request shape handed to transport
// adapters and the resilience client.
type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	Idempotency          string
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

// WebhookSendRequest carries everything one delivery attempt needs.
type WebhookSendRequest struct {
	Endpoint WebhookEndpoint
	Delivery WebhookDelivery
	Event    OutboxEvent
	Attempt  int
}

type WebhookSendResult struct {
	StatusCode int
}

// WebhookSender performs a single signed delivery attempt against an
// endpoint. Retries across attempts are the dispatcher's concern, not the
// sender's.
type WebhookSender interface {
	Send(ctx context.Context, req WebhookSendRequest) (WebhookSendResult, error)
}

// StoreProvider exposes the persistence-backed stores a repository factory
// builds as a unit.
type StoreProvider interface {
	OutboxStore() OutboxStore
	DeliveryStore() DeliveryStore
	EndpointStore() EndpointStore
}

// RepositoryStoreFactory builds stores from a persistence client, typically
// a bun DB or a persistence-bun client.
type RepositoryStoreFactory interface {
	BuildStores(client any) (StoreProvider, error)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

// JobWorkerEvent describes one worker lifecycle transition for a queued
// dispatch job.
type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// JobWorkerHook observes queue worker lifecycle transitions.
type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}
