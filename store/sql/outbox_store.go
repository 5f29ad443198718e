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
	"github.com/uptrace/bun/dialect"
)

// OutboxStore persists outbox events and hands out claim batches. Claims run
// as a single UPDATE ... RETURNING statement so concurrent dispatchers never
// see the same row twice.
type OutboxStore struct {
	db   *bun.DB
	repo repository.Repository[*outboxEventRecord]
}

func NewOutboxStore(db *bun.DB) (*OutboxStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*outboxEventRecord](db, outboxEventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid outbox repository wiring: %w", err)
		}
	}
	return &OutboxStore{db: db, repo: repo}, nil
}

// StoreEvent inserts an outbox row. A replayed insert with an idempotency key
// the tenant already used is absorbed silently so producers can retry writes.
func (s *OutboxStore) StoreEvent(ctx context.Context, event core.OutboxEvent) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: outbox store is not configured")
	}
	if err := event.Validate(); err != nil {
		return err
	}
	record := newOutboxEventRecord(event)
	if _, err := s.repo.Create(ctx, record); err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return err
	}
	return nil
}

func (s *OutboxStore) ClaimPending(ctx context.Context, limit int) ([]core.OutboxEvent, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: outbox store is not configured")
	}
	if limit <= 0 {
		limit = 1
	}
	now := time.Now().UTC()
	var records []outboxEventRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := fmt.Sprintf(`
WITH claimed AS (
	SELECT id
	FROM delivery_outbox_events
	WHERE status IN (?, ?)
	  AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
	ORDER BY occurred_at ASC
	LIMIT ?%s
)
UPDATE delivery_outbox_events
SET status = ?, updated_at = ?
WHERE id IN (SELECT id FROM claimed)
RETURNING
	id,
	tenant_id,
	event_id,
	event_type,
	payload,
	correlation_id,
	idempotency_key,
	source_service,
	status,
	attempts,
	next_attempt_at,
	last_error,
	occurred_at,
	expanded_at,
	published_at,
	created_at,
	updated_at
`, skipLockedClause(s.db))
		return tx.NewRaw(
			query,
			string(core.OutboxStatusPending),
			string(core.OutboxStatusFailed),
			now,
			limit,
			string(core.OutboxStatusProcessing),
			now,
		).Scan(ctx, &records)
	})
	if err != nil {
		return nil, err
	}

	events := make([]core.OutboxEvent, 0, len(records))
	for i := range records {
		events = append(events, outboxEventToDomain(&records[i]))
	}
	return events, nil
}

func (s *OutboxStore) GetEvent(ctx context.Context, id string) (core.OutboxEvent, error) {
	if s == nil || s.db == nil {
		return core.OutboxEvent{}, fmt.Errorf("sqlstore: outbox store is not configured")
	}
	record := &outboxEventRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.OutboxEvent{}, fmt.Errorf("%w: id %q", core.ErrEventNotFound, id)
		}
		return core.OutboxEvent{}, err
	}
	return outboxEventToDomain(record), nil
}

func (s *OutboxStore) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: outbox store is not configured")
	}
	published := publishedAt.UTC()
	_, err := s.db.NewUpdate().
		Model((*outboxEventRecord)(nil)).
		Set("status = ?", string(core.OutboxStatusPublished)).
		Set("published_at = ?", published).
		Set("next_attempt_at = NULL").
		Set("last_error = ?", "").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	return err
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, cause string, nextAttemptAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: outbox store is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*outboxEventRecord)(nil)).
		Set("status = ?", string(core.OutboxStatusFailed)).
		Set("attempts = attempts + 1").
		Set("next_attempt_at = ?", nextAttemptAt.UTC()).
		Set("last_error = ?", strings.TrimSpace(cause)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	return err
}

func (s *OutboxStore) MarkDeadLetter(ctx context.Context, id string, cause string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: outbox store is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*outboxEventRecord)(nil)).
		Set("status = ?", string(core.OutboxStatusDeadLetter)).
		Set("attempts = attempts + 1").
		Set("next_attempt_at = NULL").
		Set("last_error = ?", strings.TrimSpace(cause)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	return err
}

func (s *OutboxStore) ListUnexpanded(ctx context.Context, limit int) ([]core.OutboxEvent, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: outbox store is not configured")
	}
	if limit <= 0 {
		limit = 1
	}
	var records []outboxEventRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.expanded_at IS NULL").
		Where("?TableAlias.status != ?", string(core.OutboxStatusDeadLetter)).
		OrderExpr("?TableAlias.occurred_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	events := make([]core.OutboxEvent, 0, len(records))
	for i := range records {
		events = append(events, outboxEventToDomain(&records[i]))
	}
	return events, nil
}

func (s *OutboxStore) MarkExpanded(ctx context.Context, id string, expandedAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: outbox store is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*outboxEventRecord)(nil)).
		Set("expanded_at = ?", expandedAt.UTC()).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	return err
}

// ReleaseStuckProcessing returns claimed rows whose worker died back to the
// pending pool once they age past the cutoff.
func (s *OutboxStore) ReleaseStuckProcessing(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: outbox store is not configured")
	}
	if limit <= 0 {
		limit = 1
	}
	query := `
WITH stuck AS (
	SELECT id
	FROM delivery_outbox_events
	WHERE status = ?
	  AND updated_at < ?
	ORDER BY updated_at ASC
	LIMIT ?
)
UPDATE delivery_outbox_events
SET status = ?, updated_at = ?
WHERE id IN (SELECT id FROM stuck)
RETURNING id
`
	var ids []string
	err := s.db.NewRaw(
		query,
		string(core.OutboxStatusProcessing),
		olderThan.UTC(),
		limit,
		string(core.OutboxStatusPending),
		time.Now().UTC(),
	).Scan(ctx, &ids)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// ReplayEvent moves a dead-lettered event back to pending for another run.
func (s *OutboxStore) ReplayEvent(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: outbox store is not configured")
	}
	event, err := s.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	if event.Status != core.OutboxStatusDeadLetter {
		return fmt.Errorf("%w: event %q is %q", core.ErrReplayRequiresDeadLetter, id, event.Status)
	}
	_, err = s.db.NewUpdate().
		Model((*outboxEventRecord)(nil)).
		Set("status = ?", string(core.OutboxStatusPending)).
		Set("attempts = 0").
		Set("next_attempt_at = NULL").
		Set("last_error = ?", "").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", strings.TrimSpace(id)).
		Where("status = ?", string(core.OutboxStatusDeadLetter)).
		Exec(ctx)
	return err
}

func (s *OutboxStore) EventStats(ctx context.Context, tenantID string) (core.EventStats, error) {
	if s == nil || s.db == nil {
		return core.EventStats{}, fmt.Errorf("sqlstore: outbox store is not configured")
	}
	counts, err := statusCounts(ctx, s.db, "delivery_outbox_events", tenantID)
	if err != nil {
		return core.EventStats{}, err
	}
	return core.EventStats{
		Pending:    counts[string(core.OutboxStatusPending)],
		Processing: counts[string(core.OutboxStatusProcessing)],
		Published:  counts[string(core.OutboxStatusPublished)],
		Failed:     counts[string(core.OutboxStatusFailed)],
		DeadLetter: counts[string(core.OutboxStatusDeadLetter)],
	}, nil
}

type statusCountRow struct {
	Status string `bun:"status"`
	Total  int    `bun:"total"`
}

func statusCounts(ctx context.Context, db *bun.DB, table string, tenantID string) (map[string]int, error) {
	query := fmt.Sprintf("SELECT status, COUNT(*) AS total FROM %s", table)
	args := []any{}
	if trimmed := strings.TrimSpace(tenantID); trimmed != "" {
		query += " WHERE tenant_id = ?"
		args = append(args, trimmed)
	}
	query += " GROUP BY status"

	var rows []statusCountRow
	if err := db.NewRaw(query, args...).Scan(ctx, &rows); err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// skipLockedClause adds row-claim isolation on postgres. SQLite serializes
// writers, so the plain CTE is already race free there.
func skipLockedClause(db *bun.DB) string {
	if db != nil && db.Dialect().Name() == dialect.PG {
		return "\n\tFOR UPDATE SKIP LOCKED"
	}
	return ""
}
