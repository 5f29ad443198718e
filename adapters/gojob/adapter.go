package gojob

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-delivery/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

const (
	JobIDOutboxDispatch   = "delivery.outbox.dispatch"
	JobIDFanoutExpand     = "delivery.fanout.expand"
	JobIDWebhooksDispatch = "delivery.webhooks.dispatch"
	JobIDStuckRelease     = "delivery.stuck.release"
)

// ParamBatchSize carries the per-cycle batch override in job parameters.
const ParamBatchSize = "batch_size"

// NewOutboxDispatchMessage builds the queue message that drains one outbox
// batch. A non-positive batch size defers to the configured default.
func NewOutboxDispatchMessage(batchSize int) *core.JobExecutionMessage {
	return newPipelineMessage(JobIDOutboxDispatch, batchSize)
}

// NewFanoutExpandMessage builds the queue message that expands published
// events into delivery rows.
func NewFanoutExpandMessage(batchSize int) *core.JobExecutionMessage {
	return newPipelineMessage(JobIDFanoutExpand, batchSize)
}

// NewWebhooksDispatchMessage builds the queue message that drains one
// webhook delivery batch.
func NewWebhooksDispatchMessage(batchSize int) *core.JobExecutionMessage {
	return newPipelineMessage(JobIDWebhooksDispatch, batchSize)
}

// NewStuckReleaseMessage builds the queue message that returns abandoned
// processing rows to pending.
func NewStuckReleaseMessage() *core.JobExecutionMessage {
	return &core.JobExecutionMessage{
		JobID:      JobIDStuckRelease,
		Parameters: map[string]any{},
	}
}

func newPipelineMessage(jobID string, batchSize int) *core.JobExecutionMessage {
	params := map[string]any{}
	if batchSize > 0 {
		params[ParamBatchSize] = batchSize
	}
	return &core.JobExecutionMessage{
		JobID:      jobID,
		Parameters: params,
	}
}

// BatchSize extracts the batch override from job parameters. Queue codecs
// decode numbers inconsistently, so several widths are accepted. Zero means
// use the configured default.
func BatchSize(msg *core.JobExecutionMessage) int {
	if msg == nil {
		return 0
	}
	switch v := msg.Parameters[ParamBatchSize].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

// PipelineService is the subset of the delivery service the queue executor
// drives.
type PipelineService interface {
	DispatchOutbox(ctx context.Context, batchSize int) (core.DispatchStats, error)
	ExpandFanout(ctx context.Context, batchSize int) (core.FanoutStats, error)
	DispatchWebhooks(ctx context.Context, batchSize int) (core.DispatchStats, error)
	ReleaseStuck(ctx context.Context) (int, error)
}

// PipelineExecutor routes dequeued pipeline jobs to the matching service
// operation.
type PipelineExecutor struct {
	service PipelineService
}

func NewPipelineExecutor(service PipelineService) (*PipelineExecutor, error) {
	if service == nil {
		return nil, fmt.Errorf("gojob: pipeline service is required")
	}
	return &PipelineExecutor{service: service}, nil
}

func (e *PipelineExecutor) Execute(ctx context.Context, msg *core.JobExecutionMessage) error {
	if e == nil || e.service == nil {
		return fmt.Errorf("gojob: pipeline executor is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}

	var err error
	switch strings.TrimSpace(msg.JobID) {
	case JobIDOutboxDispatch:
		_, err = e.service.DispatchOutbox(ctx, BatchSize(msg))
	case JobIDFanoutExpand:
		_, err = e.service.ExpandFanout(ctx, BatchSize(msg))
	case JobIDWebhooksDispatch:
		_, err = e.service.DispatchWebhooks(ctx, BatchSize(msg))
	case JobIDStuckRelease:
		_, err = e.service.ReleaseStuck(ctx)
	default:
		return fmt.Errorf("gojob: unknown pipeline job %q", msg.JobID)
	}
	return err
}

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts core.JobNackOptions, attempt int) core.JobNackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// ToExecutionMessage maps a go-delivery runtime message to go-job.
func ToExecutionMessage(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	return &job.ExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(msg.DedupPolicy)),
	}
}

// FromExecutionMessage maps a go-job message into the go-delivery contract.
func FromExecutionMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	}
}

// ToNackOptions maps go-delivery nack options to go-job.
func ToNackOptions(opts core.JobNackOptions) queue.NackOptions {
	return queue.NackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

// FromNackOptions maps go-job nack options to go-delivery.
func FromNackOptions(opts queue.NackOptions) core.JobNackOptions {
	return core.JobNackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	return a.enqueuer.Enqueue(ctx, ToExecutionMessage(msg))
}

type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
}

func NewDeliveryAdapter(delivery queue.Delivery, policy RetryPolicy) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy}
}

func (d *DeliveryAdapter) Message() *core.JobExecutionMessage {
	if d == nil || d.delivery == nil {
		return nil
	}
	return FromExecutionMessage(d.delivery.Message())
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Ack(ctx)
}

func (d *DeliveryAdapter) Nack(ctx context.Context, opts core.JobNackOptions) error {
	return d.NackForAttempt(ctx, opts, 0)
}

func (d *DeliveryAdapter) NackForAttempt(ctx context.Context, opts core.JobNackOptions, attempt int) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	normalized := d.policy.NormalizeAttempt(opts, attempt)
	return d.delivery.Nack(ctx, ToNackOptions(normalized))
}

type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
	policy   RetryPolicy
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer, policy RetryPolicy) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer, policy: policy}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	return NewDeliveryAdapter(delivery, a.policy), nil
}

type WorkerHookAdapter struct {
	hook core.JobWorkerHook
}

func NewWorkerHookAdapter(hook core.JobWorkerHook) *WorkerHookAdapter {
	return &WorkerHookAdapter{hook: hook}
}

func (a *WorkerHookAdapter) OnStart(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnStart(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnSuccess(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnSuccess(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnFailure(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnFailure(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnRetry(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnRetry(ctx, mapWorkerEvent(event))
}

func mapWorkerEvent(event worker.Event) core.JobWorkerEvent {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	return core.JobWorkerEvent{
		Message:   FromExecutionMessage(message),
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ PipelineService    = (*core.Service)(nil)
	_ core.JobEnqueuer   = (*EnqueuerAdapter)(nil)
	_ core.JobDelivery   = (*DeliveryAdapter)(nil)
	_ core.JobDequeuer   = (*DequeuerAdapter)(nil)
	_ worker.Hook        = (*WorkerHookAdapter)(nil)
	_ core.JobWorkerHook = (*capturingCoreHook)(nil)
)

// capturingCoreHook only exists to assert local compile-time compatibility.
type capturingCoreHook struct{}

func (capturingCoreHook) OnStart(context.Context, core.JobWorkerEvent)   {}
func (capturingCoreHook) OnSuccess(context.Context, core.JobWorkerEvent) {}
func (capturingCoreHook) OnFailure(context.Context, core.JobWorkerEvent) {}
func (capturingCoreHook) OnRetry(context.Context, core.JobWorkerEvent)   {}
