package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-delivery/core"
)

func newOutboxEventRecord(event core.OutboxEvent) *outboxEventRecord {
	record := &outboxEventRecord{
		ID:             strings.TrimSpace(event.ID),
		TenantID:       strings.TrimSpace(event.TenantID),
		EventID:        strings.TrimSpace(event.EventID),
		EventType:      strings.TrimSpace(event.EventType),
		Payload:        copyAnyMap(event.Payload),
		CorrelationID:  strings.TrimSpace(event.CorrelationID),
		IdempotencyKey: strings.TrimSpace(event.IdempotencyKey),
		SourceService:  strings.TrimSpace(event.SourceService),
		Status:         string(event.Status),
		Attempts:       event.Attempts,
		NextAttemptAt:  cloneTimePointer(event.NextAttemptAt),
		LastError:      strings.TrimSpace(event.LastError),
		OccurredAt:     event.OccurredAt.UTC(),
		ExpandedAt:     cloneTimePointer(event.ExpandedAt),
		PublishedAt:    cloneTimePointer(event.PublishedAt),
		CreatedAt:      event.CreatedAt.UTC(),
		UpdatedAt:      event.UpdatedAt.UTC(),
	}
	return record
}

func outboxEventToDomain(record *outboxEventRecord) core.OutboxEvent {
	if record == nil {
		return core.OutboxEvent{}
	}
	return core.OutboxEvent{
		ID:             record.ID,
		TenantID:       record.TenantID,
		EventID:        record.EventID,
		EventType:      record.EventType,
		Payload:        copyAnyMap(record.Payload),
		CorrelationID:  record.CorrelationID,
		IdempotencyKey: record.IdempotencyKey,
		SourceService:  record.SourceService,
		Status:         core.OutboxStatus(record.Status),
		Attempts:       record.Attempts,
		NextAttemptAt:  cloneTimePointer(record.NextAttemptAt),
		LastError:      record.LastError,
		OccurredAt:     record.OccurredAt,
		ExpandedAt:     cloneTimePointer(record.ExpandedAt),
		PublishedAt:    cloneTimePointer(record.PublishedAt),
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
}

func newWebhookEndpointRecord(endpoint core.WebhookEndpoint) *webhookEndpointRecord {
	return &webhookEndpointRecord{
		ID:          strings.TrimSpace(endpoint.ID),
		TenantID:    strings.TrimSpace(endpoint.TenantID),
		URL:         strings.TrimSpace(endpoint.URL),
		SecretRef:   strings.TrimSpace(endpoint.SecretRef),
		EventTypes:  cloneStrings(endpoint.EventTypes),
		Enabled:     endpoint.Enabled,
		Timeout:     endpoint.Timeout,
		MaxAttempts: endpoint.MaxAttempts,
		BackoffBase: endpoint.BackoffBase,
		CreatedAt:   endpoint.CreatedAt.UTC(),
		UpdatedAt:   endpoint.UpdatedAt.UTC(),
	}
}

func webhookEndpointToDomain(record *webhookEndpointRecord) core.WebhookEndpoint {
	if record == nil {
		return core.WebhookEndpoint{}
	}
	return core.WebhookEndpoint{
		ID:          record.ID,
		TenantID:    record.TenantID,
		URL:         record.URL,
		SecretRef:   record.SecretRef,
		EventTypes:  cloneStrings(record.EventTypes),
		Enabled:     record.Enabled,
		Timeout:     record.Timeout,
		MaxAttempts: record.MaxAttempts,
		BackoffBase: record.BackoffBase,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}

func newWebhookDeliveryRecord(delivery core.WebhookDelivery) *webhookDeliveryRecord {
	return &webhookDeliveryRecord{
		ID:               strings.TrimSpace(delivery.ID),
		TenantID:         strings.TrimSpace(delivery.TenantID),
		EndpointID:       strings.TrimSpace(delivery.EndpointID),
		OutboxEventID:    strings.TrimSpace(delivery.OutboxEventID),
		EventType:        strings.TrimSpace(delivery.EventType),
		CorrelationID:    strings.TrimSpace(delivery.CorrelationID),
		Attempts:         delivery.Attempts,
		Status:           string(delivery.Status),
		NextAttemptAt:    cloneTimePointer(delivery.NextAttemptAt),
		LastResponseCode: delivery.LastResponseCode,
		LastError:        strings.TrimSpace(delivery.LastError),
		QueuedAt:         delivery.QueuedAt.UTC(),
		DeliveredAt:      cloneTimePointer(delivery.DeliveredAt),
		UpdatedAt:        delivery.UpdatedAt.UTC(),
	}
}

func webhookDeliveryToDomain(record *webhookDeliveryRecord) core.WebhookDelivery {
	if record == nil {
		return core.WebhookDelivery{}
	}
	return core.WebhookDelivery{
		ID:               record.ID,
		TenantID:         record.TenantID,
		EndpointID:       record.EndpointID,
		OutboxEventID:    record.OutboxEventID,
		EventType:        record.EventType,
		CorrelationID:    record.CorrelationID,
		Attempts:         record.Attempts,
		Status:           core.DeliveryStatus(record.Status),
		NextAttemptAt:    cloneTimePointer(record.NextAttemptAt),
		LastResponseCode: record.LastResponseCode,
		LastError:        record.LastError,
		QueuedAt:         record.QueuedAt,
		DeliveredAt:      cloneTimePointer(record.DeliveredAt),
		UpdatedAt:        record.UpdatedAt,
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	return append([]string(nil), in...)
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
