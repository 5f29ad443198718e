package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-delivery/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// WebhookDeliveryStore persists one delivery row per (endpoint, outbox event)
// pair. The unique index on that pair makes fanout expansion idempotent.
type WebhookDeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookDeliveryRecord]
}

func NewWebhookDeliveryStore(db *bun.DB) (*WebhookDeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookDeliveryRecord](db, webhookDeliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook delivery repository wiring: %w", err)
		}
	}
	return &WebhookDeliveryStore{db: db, repo: repo}, nil
}

// CreateDelivery inserts a delivery row. It reports false when the
// (endpoint, outbox event) pair already exists, without treating it as an
// error, so fanout reruns converge.
func (s *WebhookDeliveryStore) CreateDelivery(ctx context.Context, delivery core.WebhookDelivery) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	if strings.TrimSpace(delivery.EndpointID) == "" || strings.TrimSpace(delivery.OutboxEventID) == "" {
		return false, fmt.Errorf("sqlstore: endpoint id and outbox event id are required")
	}
	record := newWebhookDeliveryRecord(delivery)
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *WebhookDeliveryStore) ClaimPending(ctx context.Context, limit int) ([]core.WebhookDelivery, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	if limit <= 0 {
		limit = 1
	}
	now := time.Now().UTC()
	var records []webhookDeliveryRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := fmt.Sprintf(`
WITH claimed AS (
	SELECT id
	FROM delivery_webhook_deliveries
	WHERE status IN (?, ?)
	  AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
	ORDER BY queued_at ASC
	LIMIT ?%s
)
UPDATE delivery_webhook_deliveries
SET status = ?, updated_at = ?
WHERE id IN (SELECT id FROM claimed)
RETURNING
	id,
	tenant_id,
	endpoint_id,
	outbox_event_id,
	event_type,
	correlation_id,
	attempts,
	status,
	next_attempt_at,
	last_response_code,
	last_error,
	queued_at,
	delivered_at,
	updated_at
`, skipLockedClause(s.db))
		return tx.NewRaw(
			query,
			string(core.DeliveryStatusPending),
			string(core.DeliveryStatusFailed),
			now,
			limit,
			string(core.DeliveryStatusProcessing),
			now,
		).Scan(ctx, &records)
	})
	if err != nil {
		return nil, err
	}

	deliveries := make([]core.WebhookDelivery, 0, len(records))
	for i := range records {
		deliveries = append(deliveries, webhookDeliveryToDomain(&records[i]))
	}
	return deliveries, nil
}

func (s *WebhookDeliveryStore) GetDelivery(ctx context.Context, id string) (core.WebhookDelivery, error) {
	if s == nil || s.db == nil {
		return core.WebhookDelivery{}, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	record := &webhookDeliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.WebhookDelivery{}, fmt.Errorf("%w: id %q", core.ErrDeliveryNotFound, id)
		}
		return core.WebhookDelivery{}, err
	}
	return webhookDeliveryToDomain(record), nil
}

func (s *WebhookDeliveryStore) MarkDelivered(ctx context.Context, id string, responseCode int, deliveredAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", string(core.DeliveryStatusDelivered)).
		Set("attempts = attempts + 1").
		Set("last_response_code = ?", responseCode).
		Set("last_error = ?", "").
		Set("next_attempt_at = NULL").
		Set("delivered_at = ?", deliveredAt.UTC()).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	return err
}

func (s *WebhookDeliveryStore) MarkFailed(ctx context.Context, id string, responseCode int, cause string, nextAttemptAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", string(core.DeliveryStatusFailed)).
		Set("attempts = attempts + 1").
		Set("last_response_code = ?", responseCode).
		Set("last_error = ?", strings.TrimSpace(cause)).
		Set("next_attempt_at = ?", nextAttemptAt.UTC()).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	return err
}

func (s *WebhookDeliveryStore) MarkDeadLetter(ctx context.Context, id string, responseCode int, cause string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", string(core.DeliveryStatusDeadLetter)).
		Set("attempts = attempts + 1").
		Set("last_response_code = ?", responseCode).
		Set("last_error = ?", strings.TrimSpace(cause)).
		Set("next_attempt_at = NULL").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	return err
}

func (s *WebhookDeliveryStore) ReleaseStuckProcessing(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	if limit <= 0 {
		limit = 1
	}
	query := `
WITH stuck AS (
	SELECT id
	FROM delivery_webhook_deliveries
	WHERE status = ?
	  AND updated_at < ?
	ORDER BY updated_at ASC
	LIMIT ?
)
UPDATE delivery_webhook_deliveries
SET status = ?, updated_at = ?
WHERE id IN (SELECT id FROM stuck)
RETURNING id
`
	var ids []string
	err := s.db.NewRaw(
		query,
		string(core.DeliveryStatusProcessing),
		olderThan.UTC(),
		limit,
		string(core.DeliveryStatusPending),
		time.Now().UTC(),
	).Scan(ctx, &ids)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (s *WebhookDeliveryStore) ReplayDelivery(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	delivery, err := s.GetDelivery(ctx, id)
	if err != nil {
		return err
	}
	if delivery.Status != core.DeliveryStatusDeadLetter {
		return fmt.Errorf("%w: delivery %q is %q", core.ErrReplayRequiresDeadLetter, id, delivery.Status)
	}
	_, err = s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", string(core.DeliveryStatusPending)).
		Set("attempts = 0").
		Set("next_attempt_at = NULL").
		Set("last_error = ?", "").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", strings.TrimSpace(id)).
		Where("status = ?", string(core.DeliveryStatusDeadLetter)).
		Exec(ctx)
	return err
}

func (s *WebhookDeliveryStore) DeliveryStats(ctx context.Context, tenantID string) (core.DeliveryStats, error) {
	if s == nil || s.db == nil {
		return core.DeliveryStats{}, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	counts, err := statusCounts(ctx, s.db, "delivery_webhook_deliveries", tenantID)
	if err != nil {
		return core.DeliveryStats{}, err
	}
	return core.DeliveryStats{
		Pending:    counts[string(core.DeliveryStatusPending)],
		Processing: counts[string(core.DeliveryStatusProcessing)],
		Delivered:  counts[string(core.DeliveryStatusDelivered)],
		Failed:     counts[string(core.DeliveryStatusFailed)],
		DeadLetter: counts[string(core.DeliveryStatusDeadLetter)],
	}, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
