package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type outboxEventRecord struct {
	bun.BaseModel `bun:"table:delivery_outbox_events,alias:doe"`

	ID             string         `bun:"id,pk"`
	TenantID       string         `bun:"tenant_id,notnull"`
	EventID        string         `bun:"event_id,notnull"`
	EventType      string         `bun:"event_type,notnull"`
	Payload        map[string]any `bun:"payload,type:jsonb,notnull"`
	CorrelationID  string         `bun:"correlation_id"`
	IdempotencyKey string         `bun:"idempotency_key,notnull"`
	SourceService  string         `bun:"source_service"`
	Status         string         `bun:"status,notnull"`
	Attempts       int            `bun:"attempts,notnull"`
	NextAttemptAt  *time.Time     `bun:"next_attempt_at,nullzero"`
	LastError      string         `bun:"last_error"`
	OccurredAt     time.Time      `bun:"occurred_at,notnull"`
	ExpandedAt     *time.Time     `bun:"expanded_at,nullzero"`
	PublishedAt    *time.Time     `bun:"published_at,nullzero"`
	CreatedAt      time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type webhookEndpointRecord struct {
	bun.BaseModel `bun:"table:delivery_webhook_endpoints,alias:dwe"`

	ID          string        `bun:"id,pk"`
	TenantID    string        `bun:"tenant_id,notnull"`
	URL         string        `bun:"url,notnull"`
	SecretRef   string        `bun:"secret_ref,notnull"`
	EventTypes  []string      `bun:"event_types,type:jsonb,notnull"`
	Enabled     bool          `bun:"enabled,notnull"`
	Timeout     time.Duration `bun:"timeout_ns,notnull"`
	MaxAttempts int           `bun:"max_attempts,notnull"`
	BackoffBase time.Duration `bun:"backoff_base_ns,notnull"`
	CreatedAt   time.Time     `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time     `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type webhookDeliveryRecord struct {
	bun.BaseModel `bun:"table:delivery_webhook_deliveries,alias:dwd"`

	ID               string     `bun:"id,pk"`
	TenantID         string     `bun:"tenant_id,notnull"`
	EndpointID       string     `bun:"endpoint_id,notnull"`
	OutboxEventID    string     `bun:"outbox_event_id,notnull"`
	EventType        string     `bun:"event_type,notnull"`
	CorrelationID    string     `bun:"correlation_id"`
	Attempts         int        `bun:"attempts,notnull"`
	Status           string     `bun:"status,notnull"`
	NextAttemptAt    *time.Time `bun:"next_attempt_at,nullzero"`
	LastResponseCode int        `bun:"last_response_code"`
	LastError        string     `bun:"last_error"`
	QueuedAt         time.Time  `bun:"queued_at,notnull"`
	DeliveredAt      *time.Time `bun:"delivered_at,nullzero"`
	UpdatedAt        time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
