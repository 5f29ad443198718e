package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"testing"
	"time"

	deliverymigrations "github.com/goliatone/go-delivery/migrations"
	sqlstore "github.com/goliatone/go-delivery/store/sql"

	"github.com/goliatone/go-delivery/core"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-delivery-tests"
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:delivery-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = deliverymigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != deliverymigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, deliverymigrations.WithValidationTargets(deliverymigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}

func newTestFactory(t *testing.T) (*sqlstore.RepositoryFactory, func()) {
	t.Helper()
	client, cleanup := newSQLiteClient(t)
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		cleanup()
		t.Fatalf("new repository factory: %v", err)
	}
	return factory, cleanup
}

func testOutboxEvent(suffix string) core.OutboxEvent {
	now := time.Now().UTC()
	return core.OutboxEvent{
		ID:             "row-" + suffix,
		TenantID:       "tenant-1",
		EventID:        "evt-" + suffix,
		EventType:      "order.created",
		Payload:        map[string]any{"orderId": suffix},
		IdempotencyKey: "idem-" + suffix,
		Status:         core.OutboxStatusPending,
		OccurredAt:     now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	var tableName string
	if err := client.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"delivery_outbox_events",
	).Scan(context.Background(), &tableName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if tableName != "delivery_outbox_events" {
		t.Fatalf("expected delivery_outbox_events table, got %q", tableName)
	}
}

func TestOutboxStore_StoreClaimPublishRoundtrip(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newTestFactory(t)
	defer cleanup()
	store := factory.OutboxStore()

	event := testOutboxEvent("1")
	if err := store.StoreEvent(ctx, event); err != nil {
		t.Fatalf("store event: %v", err)
	}

	// A retried write with the same tenant and idempotency key is absorbed.
	duplicate := testOutboxEvent("1")
	duplicate.ID = "row-1-retry"
	duplicate.EventID = "evt-1-retry"
	if err := store.StoreEvent(ctx, duplicate); err != nil {
		t.Fatalf("duplicate store must be absorbed: %v", err)
	}

	claimed, err := store.ClaimPending(ctx, 10)
	if err != nil {
		t.Fatalf("claim pending: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("expected one claimed event, got %d", len(claimed))
	}
	if claimed[0].Status != core.OutboxStatusProcessing {
		t.Fatalf("expected processing status, got %q", claimed[0].Status)
	}

	again, err := store.ClaimPending(ctx, 10)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("claimed rows must not be handed out twice, got %d", len(again))
	}

	publishedAt := time.Now().UTC()
	if err := store.MarkPublished(ctx, claimed[0].ID, publishedAt); err != nil {
		t.Fatalf("mark published: %v", err)
	}
	stored, err := store.GetEvent(ctx, claimed[0].ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if stored.Status != core.OutboxStatusPublished || stored.PublishedAt == nil {
		t.Fatalf("expected published event, got %+v", stored)
	}

	stats, err := store.EventStats(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("event stats: %v", err)
	}
	if stats.Published != 1 || stats.Total() != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestOutboxStore_ConcurrentClaimsAreDisjoint(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newTestFactory(t)
	defer cleanup()
	store := factory.OutboxStore()

	const seeded = 12
	pending := make(map[string]bool, seeded)
	for i := 0; i < seeded; i++ {
		event := testOutboxEvent(fmt.Sprintf("claim-%d", i))
		if err := store.StoreEvent(ctx, event); err != nil {
			t.Fatalf("store event %d: %v", i, err)
		}
		pending[event.ID] = true
	}

	const claimants = 4
	batches := make(chan []core.OutboxEvent, claimants)
	errs := make(chan error, claimants)
	var wg sync.WaitGroup
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := store.ClaimPending(ctx, seeded/claimants)
			if err != nil {
				errs <- err
				return
			}
			batches <- claimed
		}()
	}
	wg.Wait()
	close(batches)
	close(errs)
	for err := range errs {
		t.Fatalf("claim pending: %v", err)
	}

	seen := make(map[string]bool, seeded)
	for batch := range batches {
		for _, event := range batch {
			if event.Status != core.OutboxStatusProcessing {
				t.Fatalf("claimed row must be processing, got %q", event.Status)
			}
			if !pending[event.ID] {
				t.Fatalf("claimed an unseeded event %s", event.ID)
			}
			if seen[event.ID] {
				t.Fatalf("event %s handed to two claimants", event.ID)
			}
			seen[event.ID] = true
		}
	}
	if len(seen) != seeded {
		t.Fatalf("expected every pending event claimed exactly once, got %d of %d", len(seen), seeded)
	}

	leftover, err := store.ClaimPending(ctx, seeded)
	if err != nil {
		t.Fatalf("claim after drain: %v", err)
	}
	if len(leftover) != 0 {
		t.Fatalf("processing rows must stay excluded from claims, got %d", len(leftover))
	}
}

func TestOutboxStore_RetrySchedulingAndDeadLetterReplay(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newTestFactory(t)
	defer cleanup()
	store := factory.OutboxStore()

	if err := store.StoreEvent(ctx, testOutboxEvent("2")); err != nil {
		t.Fatalf("store event: %v", err)
	}
	claimed, err := store.ClaimPending(ctx, 1)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("claim: %v (%d rows)", err, len(claimed))
	}
	id := claimed[0].ID

	// A future retry keeps the row out of claim batches.
	if err := store.MarkFailed(ctx, id, "broker down", time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if rows, claimErr := store.ClaimPending(ctx, 10); claimErr != nil || len(rows) != 0 {
		t.Fatalf("future retry must not be claimable: %v (%d rows)", claimErr, len(rows))
	}

	// A due retry is claimable again.
	if err := store.MarkFailed(ctx, id, "broker down", time.Now().UTC().Add(-time.Second)); err != nil {
		t.Fatalf("mark failed due: %v", err)
	}
	claimed, err = store.ClaimPending(ctx, 10)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("due retry claim: %v (%d rows)", err, len(claimed))
	}
	if claimed[0].Attempts != 2 {
		t.Fatalf("expected two recorded attempts, got %d", claimed[0].Attempts)
	}

	if err := store.MarkDeadLetter(ctx, id, "exhausted"); err != nil {
		t.Fatalf("mark dead letter: %v", err)
	}
	event, err := store.GetEvent(ctx, id)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if event.Status != core.OutboxStatusDeadLetter || event.LastError != "exhausted" {
		t.Fatalf("expected dead letter, got %+v", event)
	}

	if err := store.ReplayEvent(ctx, id); err != nil {
		t.Fatalf("replay: %v", err)
	}
	event, err = store.GetEvent(ctx, id)
	if err != nil {
		t.Fatalf("get replayed event: %v", err)
	}
	if event.Status != core.OutboxStatusPending || event.Attempts != 0 || event.LastError != "" {
		t.Fatalf("expected reset pending event, got %+v", event)
	}

	// Replay only applies to dead-lettered rows.
	if err := store.ReplayEvent(ctx, id); !errors.Is(err, core.ErrReplayRequiresDeadLetter) {
		t.Fatalf("expected replay guard, got %v", err)
	}
}

func TestOutboxStore_FanoutExpansionBookkeeping(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newTestFactory(t)
	defer cleanup()
	store := factory.OutboxStore()

	if err := store.StoreEvent(ctx, testOutboxEvent("3")); err != nil {
		t.Fatalf("store event: %v", err)
	}
	unexpanded, err := store.ListUnexpanded(ctx, 10)
	if err != nil || len(unexpanded) != 1 {
		t.Fatalf("list unexpanded: %v (%d rows)", err, len(unexpanded))
	}

	if err := store.MarkExpanded(ctx, unexpanded[0].ID, time.Now().UTC()); err != nil {
		t.Fatalf("mark expanded: %v", err)
	}
	unexpanded, err = store.ListUnexpanded(ctx, 10)
	if err != nil || len(unexpanded) != 0 {
		t.Fatalf("expanded event must drop out of the scan: %v (%d rows)", err, len(unexpanded))
	}
}

func TestWebhookDeliveryStore_FanoutPairIsIdempotent(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newTestFactory(t)
	defer cleanup()
	store := factory.DeliveryStore()

	delivery := core.WebhookDelivery{
		ID:            "dlv-1",
		TenantID:      "tenant-1",
		EndpointID:    "ep-1",
		OutboxEventID: "row-1",
		EventType:     "order.created",
		Status:        core.DeliveryStatusPending,
		QueuedAt:      time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	created, err := store.CreateDelivery(ctx, delivery)
	if err != nil || !created {
		t.Fatalf("first create: created=%v err=%v", created, err)
	}

	delivery.ID = "dlv-1-rerun"
	created, err = store.CreateDelivery(ctx, delivery)
	if err != nil {
		t.Fatalf("rerun create: %v", err)
	}
	if created {
		t.Fatalf("expected duplicate fanout pair to be absorbed")
	}
}

func TestWebhookDeliveryStore_ClaimDeliverAndStats(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newTestFactory(t)
	defer cleanup()
	store := factory.DeliveryStore()

	for i := 0; i < 2; i++ {
		delivery := core.WebhookDelivery{
			ID:            fmt.Sprintf("dlv-%d", i),
			TenantID:      "tenant-1",
			EndpointID:    "ep-1",
			OutboxEventID: fmt.Sprintf("row-%d", i),
			EventType:     "order.created",
			Status:        core.DeliveryStatusPending,
			QueuedAt:      time.Now().UTC().Add(time.Duration(i) * time.Second),
			UpdatedAt:     time.Now().UTC(),
		}
		if _, err := store.CreateDelivery(ctx, delivery); err != nil {
			t.Fatalf("create delivery %d: %v", i, err)
		}
	}

	claimed, err := store.ClaimPending(ctx, 1)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("claim: %v (%d rows)", err, len(claimed))
	}
	if claimed[0].ID != "dlv-0" {
		t.Fatalf("expected oldest delivery first, got %q", claimed[0].ID)
	}

	if err := store.MarkDelivered(ctx, claimed[0].ID, 200, time.Now().UTC()); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	delivered, err := store.GetDelivery(ctx, claimed[0].ID)
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if delivered.Status != core.DeliveryStatusDelivered || delivered.LastResponseCode != 200 || delivered.DeliveredAt == nil {
		t.Fatalf("unexpected delivered row: %+v", delivered)
	}

	stats, err := store.DeliveryStats(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("delivery stats: %v", err)
	}
	if stats.Delivered != 1 || stats.Pending != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestStores_ReleaseStuckProcessing(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newTestFactory(t)
	defer cleanup()
	store := factory.OutboxStore()

	if err := store.StoreEvent(ctx, testOutboxEvent("4")); err != nil {
		t.Fatalf("store event: %v", err)
	}
	claimed, err := store.ClaimPending(ctx, 1)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("claim: %v (%d rows)", err, len(claimed))
	}

	released, err := store.ReleaseStuckProcessing(ctx, time.Now().UTC().Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("release stuck: %v", err)
	}
	if released != 1 {
		t.Fatalf("expected one released row, got %d", released)
	}

	claimed, err = store.ClaimPending(ctx, 1)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("released row must be claimable: %v (%d rows)", err, len(claimed))
	}
}

func TestEndpointStore_SaveGetAndSubscriptionFilter(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newTestFactory(t)
	defer cleanup()
	endpoints := factory.Endpoints()

	wildcard, err := endpoints.SaveEndpoint(ctx, core.WebhookEndpoint{
		TenantID:   "tenant-1",
		URL:        "https://hooks.example.com/all",
		SecretRef:  "secrets/all",
		EventTypes: []string{"*"},
		Enabled:    true,
	})
	if err != nil {
		t.Fatalf("save wildcard endpoint: %v", err)
	}
	if _, err := endpoints.SaveEndpoint(ctx, core.WebhookEndpoint{
		TenantID:   "tenant-1",
		URL:        "https://hooks.example.com/orders",
		SecretRef:  "secrets/orders",
		EventTypes: []string{"order.created"},
		Enabled:    true,
	}); err != nil {
		t.Fatalf("save order endpoint: %v", err)
	}
	if _, err := endpoints.SaveEndpoint(ctx, core.WebhookEndpoint{
		TenantID:   "tenant-1",
		URL:        "https://hooks.example.com/disabled",
		SecretRef:  "secrets/disabled",
		EventTypes: []string{"*"},
		Enabled:    false,
	}); err != nil {
		t.Fatalf("save disabled endpoint: %v", err)
	}

	fetched, err := endpoints.GetEndpoint(ctx, wildcard.ID)
	if err != nil {
		t.Fatalf("get endpoint: %v", err)
	}
	if fetched.URL != wildcard.URL || len(fetched.EventTypes) != 1 {
		t.Fatalf("unexpected endpoint: %+v", fetched)
	}

	subscribed, err := endpoints.ListSubscribed(ctx, "tenant-1", "order.created")
	if err != nil {
		t.Fatalf("list subscribed: %v", err)
	}
	if len(subscribed) != 2 {
		t.Fatalf("expected wildcard and exact match, got %d", len(subscribed))
	}

	subscribed, err = endpoints.ListSubscribed(ctx, "tenant-1", "invoice.paid")
	if err != nil {
		t.Fatalf("list subscribed other type: %v", err)
	}
	if len(subscribed) != 1 {
		t.Fatalf("expected wildcard only, got %d", len(subscribed))
	}

	// Upsert by id replaces the registration.
	wildcard.URL = "https://hooks.example.com/all-v2"
	updated, err := endpoints.SaveEndpoint(ctx, wildcard)
	if err != nil {
		t.Fatalf("update endpoint: %v", err)
	}
	if updated.URL != "https://hooks.example.com/all-v2" {
		t.Fatalf("expected updated url, got %q", updated.URL)
	}
	fetched, err = endpoints.GetEndpoint(ctx, wildcard.ID)
	if err != nil || fetched.URL != "https://hooks.example.com/all-v2" {
		t.Fatalf("expected persisted update, got %+v (%v)", fetched, err)
	}

	if _, err := endpoints.GetEndpoint(ctx, "missing"); !errors.Is(err, core.ErrEndpointNotFound) {
		t.Fatalf("expected not found sentinel, got %v", err)
	}
}
