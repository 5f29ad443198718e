package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/goliatone/go-delivery/core"
)

const KindNoop = "noop"
const KindMemory = "memory"

// NoopTransport acknowledges every publish without carrying the event
// anywhere. Deployments that only fan out webhooks use it so outbox rows
// still move to published durably.
type NoopTransport struct{}

func NewNoopTransport() *NoopTransport {
	return &NoopTransport{}
}

func (*NoopTransport) Kind() string {
	return KindNoop
}

func (t *NoopTransport) Publish(context.Context, core.OutboxEvent) error {
	if t == nil {
		return fmt.Errorf("transport: noop transport is nil")
	}
	return nil
}

// MemoryTransport buffers published events in process. It backs tests and
// single-process deployments where a consumer drains the channel directly.
type MemoryTransport struct {
	mu     sync.Mutex
	closed bool
	events chan core.OutboxEvent
}

func NewMemoryTransport(capacity int) *MemoryTransport {
	if capacity <= 0 {
		capacity = 128
	}
	return &MemoryTransport{
		events: make(chan core.OutboxEvent, capacity),
	}
}

func (*MemoryTransport) Kind() string {
	return KindMemory
}

func (t *MemoryTransport) Publish(ctx context.Context, event core.OutboxEvent) error {
	if t == nil {
		return fmt.Errorf("transport: memory transport is nil")
	}
	if ctx != nil && ctx.Err() != nil {
		return fmt.Errorf("transport: publish %s: %w", event.EventID, ctx.Err())
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("transport: memory transport is closed")
	}
	t.mu.Unlock()

	select {
	case t.events <- event:
		return nil
	default:
		return fmt.Errorf("transport: memory transport buffer is full")
	}
}

// Events exposes the buffered stream for a consumer to range over.
func (t *MemoryTransport) Events() <-chan core.OutboxEvent {
	return t.events
}

func (t *MemoryTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	close(t.events)
}

var _ core.EventTransport = (*NoopTransport)(nil)
var _ core.EventTransport = (*MemoryTransport)(nil)
