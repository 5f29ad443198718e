package delivery

import (
	"context"
	"testing"

	deliverycommand "github.com/goliatone/go-delivery/command"
	"github.com/goliatone/go-delivery/core"
	deliveryquery "github.com/goliatone/go-delivery/query"
)

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	svc := &stubFacadeService{}

	facade, err := NewFacade(svc, WithEventReader(stubFacadeEventReader{}))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.EnqueueEvent == nil || commands.DispatchOutbox == nil || commands.ReplayDelivery == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.GetEvent == nil || queries.EventStats == nil || queries.DeliveryStats == nil {
		t.Fatalf("expected query handlers to be wired")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{}

	facade, err := NewFacade(svc, WithEventReader(stubFacadeEventReader{}))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	if err := facade.Commands().ReplayEvent.Execute(context.Background(), deliverycommand.ReplayEventMessage{
		EventID: "evt-row-1",
	}); err != nil {
		t.Fatalf("execute replay command: %v", err)
	}
	if svc.lastReplayEventID != "evt-row-1" {
		t.Fatalf("unexpected replay delegation payload %q", svc.lastReplayEventID)
	}

	stats, err := facade.Queries().EventStats.Query(context.Background(), deliveryquery.EventStatsMessage{
		TenantID: "acme",
	})
	if err != nil {
		t.Fatalf("query event stats: %v", err)
	}
	if stats.Published != 3 {
		t.Fatalf("unexpected event stats result: %#v", stats)
	}
}

func TestNewFacade_ResolvesReadersFromDependencies(t *testing.T) {
	svc := &stubFacadeService{
		deps: core.ServiceDependencies{
			OutboxStore: stubFacadeOutboxStore{},
		},
	}

	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	event, err := facade.Queries().GetEvent.Query(context.Background(), deliveryquery.GetEventMessage{
		EventID: "evt-row-2",
	})
	if err != nil {
		t.Fatalf("query event through dependency reader: %v", err)
	}
	if event.ID != "evt-row-2" {
		t.Fatalf("unexpected event result: %#v", event)
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}

type stubFacadeService struct {
	deps              core.ServiceDependencies
	lastReplayEventID string
}

func (s *stubFacadeService) Dependencies() core.ServiceDependencies {
	return s.deps
}

func (s *stubFacadeService) EnqueueEvent(_ context.Context, event core.OutboxEvent) (core.OutboxEvent, error) {
	event.Status = core.OutboxStatusPending
	return event, nil
}

func (s *stubFacadeService) DispatchOutbox(context.Context, int) (core.DispatchStats, error) {
	return core.DispatchStats{Claimed: 1, Published: 1}, nil
}

func (s *stubFacadeService) ExpandFanout(context.Context, int) (core.FanoutStats, error) {
	return core.FanoutStats{Scanned: 1, Created: 2}, nil
}

func (s *stubFacadeService) DispatchWebhooks(context.Context, int) (core.DispatchStats, error) {
	return core.DispatchStats{Claimed: 2, Delivered: 2}, nil
}

func (s *stubFacadeService) ReleaseStuck(context.Context) (int, error) {
	return 0, nil
}

func (s *stubFacadeService) ReplayEvent(_ context.Context, id string) error {
	s.lastReplayEventID = id
	return nil
}

func (s *stubFacadeService) ReplayDelivery(context.Context, string) error {
	return nil
}

type stubFacadeEventReader struct{}

func (stubFacadeEventReader) GetEvent(_ context.Context, id string) (core.OutboxEvent, error) {
	return core.OutboxEvent{ID: id}, nil
}

func (stubFacadeEventReader) EventStats(context.Context, string) (core.EventStats, error) {
	return core.EventStats{Published: 3}, nil
}

// stubFacadeOutboxStore exercises reader resolution from wired dependencies.
type stubFacadeOutboxStore struct {
	core.OutboxStore
}

func (stubFacadeOutboxStore) GetEvent(_ context.Context, id string) (core.OutboxEvent, error) {
	return core.OutboxEvent{ID: id}, nil
}

func (stubFacadeOutboxStore) EventStats(context.Context, string) (core.EventStats, error) {
	return core.EventStats{}, nil
}

var _ CommandQueryService = (*stubFacadeService)(nil)
