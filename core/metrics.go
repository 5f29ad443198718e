package core

import "context"

// Stable metric names emitted per dispatch cycle. The scope tag separates
// the outbox drain from the webhook drain; fanout has its own names.
const (
	MetricDispatchClaimed      = "delivery.dispatch.claimed"
	MetricDispatchPublished    = "delivery.dispatch.published"
	MetricDispatchDelivered    = "delivery.dispatch.delivered"
	MetricDispatchRetried      = "delivery.dispatch.retried"
	MetricDispatchDeadLettered = "delivery.dispatch.dead_lettered"
	MetricFanoutScanned        = "delivery.fanout.scanned"
	MetricFanoutCreated        = "delivery.fanout.created"
	MetricFanoutDeduped        = "delivery.fanout.deduped"
)

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}
