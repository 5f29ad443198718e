package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-delivery/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type EndpointStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookEndpointRecord]
}

func NewEndpointStore(db *bun.DB) (*EndpointStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookEndpointRecord](db, webhookEndpointHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid endpoint repository wiring: %w", err)
		}
	}
	return &EndpointStore{db: db, repo: repo}, nil
}

// SaveEndpoint upserts an endpoint registration by id.
func (s *EndpointStore) SaveEndpoint(ctx context.Context, endpoint core.WebhookEndpoint) (core.WebhookEndpoint, error) {
	if s == nil || s.db == nil {
		return core.WebhookEndpoint{}, fmt.Errorf("sqlstore: endpoint store is not configured")
	}
	if strings.TrimSpace(endpoint.ID) == "" {
		endpoint.ID = uuid.NewString()
	}
	if err := endpoint.Validate(); err != nil {
		return core.WebhookEndpoint{}, err
	}
	now := time.Now().UTC()
	if endpoint.CreatedAt.IsZero() {
		endpoint.CreatedAt = now
	}
	endpoint.UpdatedAt = now

	record := newWebhookEndpointRecord(endpoint)
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE").
		Set("tenant_id = EXCLUDED.tenant_id").
		Set("url = EXCLUDED.url").
		Set("secret_ref = EXCLUDED.secret_ref").
		Set("event_types = EXCLUDED.event_types").
		Set("enabled = EXCLUDED.enabled").
		Set("timeout_ns = EXCLUDED.timeout_ns").
		Set("max_attempts = EXCLUDED.max_attempts").
		Set("backoff_base_ns = EXCLUDED.backoff_base_ns").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return core.WebhookEndpoint{}, err
	}
	return webhookEndpointToDomain(record), nil
}

func (s *EndpointStore) GetEndpoint(ctx context.Context, id string) (core.WebhookEndpoint, error) {
	if s == nil || s.db == nil {
		return core.WebhookEndpoint{}, fmt.Errorf("sqlstore: endpoint store is not configured")
	}
	record := &webhookEndpointRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.WebhookEndpoint{}, fmt.Errorf("%w: id %q", core.ErrEndpointNotFound, id)
		}
		return core.WebhookEndpoint{}, err
	}
	return webhookEndpointToDomain(record), nil
}

// ListSubscribed returns the enabled endpoints of a tenant whose event type
// filter covers the given type. Filter matching happens in process because
// the list is stored as a JSON array and wildcard semantics live on the
// domain type.
func (s *EndpointStore) ListSubscribed(ctx context.Context, tenantID string, eventType string) ([]core.WebhookEndpoint, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: endpoint store is not configured")
	}
	var records []webhookEndpointRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.tenant_id = ?", strings.TrimSpace(tenantID)).
		Where("?TableAlias.enabled = ?", true).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	endpoints := make([]core.WebhookEndpoint, 0, len(records))
	for i := range records {
		endpoint := webhookEndpointToDomain(&records[i])
		if !endpoint.SubscribesTo(eventType) {
			continue
		}
		endpoints = append(endpoints, endpoint)
	}
	return endpoints, nil
}
