package core

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	ErrEventNotFound            = errors.New("core: outbox event not found")
	ErrDeliveryNotFound         = errors.New("core: webhook delivery not found")
	ErrEndpointNotFound         = errors.New("core: webhook endpoint not found")
	ErrDispatchInFlight         = errors.New("core: dispatch cycle already in flight")
	ErrEndpointURLNotHTTPS      = errors.New("core: endpoint url must be https")
	ErrIdempotencyKeyRequired   = errors.New("core: idempotency key is required")
	ErrReplayRequiresDeadLetter = errors.New("core: replay requires a dead-lettered item")
)

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusPublished  OutboxStatus = "published"
	OutboxStatusFailed     OutboxStatus = "failed"
	OutboxStatusDeadLetter OutboxStatus = "dead_letter"
)

func (s OutboxStatus) Terminal() bool {
	return s == OutboxStatusPublished || s == OutboxStatusDeadLetter
}

// OutboxEvent is a durable record of a business event awaiting publication.
// It is written in the same transaction as the mutation it describes and
// drained asynchronously by the outbox dispatcher.
type OutboxEvent struct {
	ID             string
	TenantID       string
	EventID        string
	EventType      string
	Payload        map[string]any
	CorrelationID  string
	IdempotencyKey string
	SourceService  string
	Status         OutboxStatus
	Attempts       int
	NextAttemptAt  *time.Time
	LastError      string
	OccurredAt     time.Time
	ExpandedAt     *time.Time
	PublishedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (e OutboxEvent) Validate() error {
	if strings.TrimSpace(e.TenantID) == "" {
		return fmt.Errorf("core: outbox tenant id is required")
	}
	if strings.TrimSpace(e.EventID) == "" {
		return fmt.Errorf("core: outbox event id is required")
	}
	if strings.TrimSpace(e.EventType) == "" {
		return fmt.Errorf("core: outbox event type is required")
	}
	if strings.TrimSpace(e.IdempotencyKey) == "" {
		return ErrIdempotencyKeyRequired
	}
	return nil
}

type DeliveryStatus string

const (
	DeliveryStatusPending    DeliveryStatus = "pending"
	DeliveryStatusProcessing DeliveryStatus = "processing"
	DeliveryStatusDelivered  DeliveryStatus = "delivered"
	DeliveryStatusFailed     DeliveryStatus = "failed"
	DeliveryStatusDeadLetter DeliveryStatus = "dead_letter"
)

func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryStatusDelivered || s == DeliveryStatusDeadLetter
}

// WebhookEndpoint is tenant-configured delivery target configuration. It is
// owned by an external management surface and read-only to this library.
type WebhookEndpoint struct {
	ID          string
	TenantID    string
	URL         string
	SecretRef   string
	EventTypes  []string
	Enabled     bool
	Timeout     time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (e WebhookEndpoint) Validate() error {
	if strings.TrimSpace(e.TenantID) == "" {
		return fmt.Errorf("core: endpoint tenant id is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(e.URL))
	if err != nil {
		return fmt.Errorf("core: invalid endpoint url: %w", err)
	}
	if !strings.EqualFold(parsed.Scheme, "https") {
		return fmt.Errorf("%w: %q", ErrEndpointURLNotHTTPS, e.URL)
	}
	if strings.TrimSpace(e.SecretRef) == "" {
		return fmt.Errorf("core: endpoint secret ref is required")
	}
	return nil
}

// SubscribesTo reports whether the endpoint is subscribed to the event type.
// An endpoint with no explicit subscriptions receives nothing; the wildcard
// "*" subscribes an endpoint to every event type.
func (e WebhookEndpoint) SubscribesTo(eventType string) bool {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return false
	}
	for _, subscribed := range e.EventTypes {
		subscribed = strings.TrimSpace(subscribed)
		if subscribed == "*" || strings.EqualFold(subscribed, eventType) {
			return true
		}
	}
	return false
}

// WebhookDelivery is one endpoint-scoped delivery of a published outbox
// event. Exactly one row exists per (endpoint, outbox event) pair.
type WebhookDelivery struct {
	ID               string
	TenantID         string
	EndpointID       string
	OutboxEventID    string
	EventType        string
	CorrelationID    string
	Attempts         int
	Status           DeliveryStatus
	NextAttemptAt    *time.Time
	LastResponseCode int
	LastError        string
	QueuedAt         time.Time
	DeliveredAt      *time.Time
	UpdatedAt        time.Time
}

func (d WebhookDelivery) Validate() error {
	if strings.TrimSpace(d.TenantID) == "" {
		return fmt.Errorf("core: delivery tenant id is required")
	}
	if strings.TrimSpace(d.EndpointID) == "" {
		return fmt.Errorf("core: delivery endpoint id is required")
	}
	if strings.TrimSpace(d.OutboxEventID) == "" {
		return fmt.Errorf("core: delivery outbox event id is required")
	}
	return nil
}

// EventStats aggregates outbox rows by status, for observability only.
type EventStats struct {
	Pending    int
	Processing int
	Published  int
	Failed     int
	DeadLetter int
}

func (s EventStats) Total() int {
	return s.Pending + s.Processing + s.Published + s.Failed + s.DeadLetter
}

// DeliveryStats aggregates delivery rows by status, for observability only.
type DeliveryStats struct {
	Pending    int
	Processing int
	Delivered  int
	Failed     int
	DeadLetter int
}

func (s DeliveryStats) Total() int {
	return s.Pending + s.Processing + s.Delivered + s.Failed + s.DeadLetter
}

// DispatchStats captures one dispatch cycle outcome.
type DispatchStats struct {
	Claimed      int
	Published    int
	Delivered    int
	Retried      int
	DeadLettered int
}

func (s DispatchStats) Processed() int {
	return s.Published + s.Delivered + s.Retried + s.DeadLettered
}

// FanoutStats captures one fanout expansion cycle outcome.
type FanoutStats struct {
	Scanned int
	Created int
	Deduped int
}
