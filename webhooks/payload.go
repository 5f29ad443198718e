package webhooks

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-delivery/core"
)

// WirePayload is the JSON body delivered to webhook endpoints. The same
// delivery always serializes to the same bytes so signatures remain stable
// across retries.
type WirePayload struct {
	EventType     string         `json:"eventType"`
	EventID       string         `json:"eventId"`
	OccurredAt    string         `json:"occurredAt"`
	Payload       map[string]any `json:"payload"`
	TenantID      string         `json:"tenantId"`
	CorrelationID string         `json:"correlationId,omitempty"`
	DeliveryID    string         `json:"deliveryId"`
	AttemptNumber int            `json:"attemptNumber"`
}

func NewWirePayload(event core.OutboxEvent, delivery core.WebhookDelivery, attempt int) WirePayload {
	return WirePayload{
		EventType:     event.EventType,
		EventID:       event.EventID,
		OccurredAt:    event.OccurredAt.UTC().Format(time.RFC3339),
		Payload:       event.Payload,
		TenantID:      event.TenantID,
		CorrelationID: strings.TrimSpace(delivery.CorrelationID),
		DeliveryID:    delivery.ID,
		AttemptNumber: attempt,
	}
}

// MarshalCanonical serializes the payload with object keys sorted at every
// nesting level.
func (p WirePayload) MarshalCanonical() ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("webhooks: payload marshal failed: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("webhooks: payload normalize failed: %w", err)
	}
	return CanonicalJSON(generic)
}

// CanonicalJSON encodes a value as compact JSON with recursively sorted
// object keys. Two structurally equal values always produce identical bytes.
func CanonicalJSON(value any) ([]byte, error) {
	var builder strings.Builder
	if err := writeCanonical(&builder, value); err != nil {
		return nil, err
	}
	return []byte(builder.String()), nil
}

func writeCanonical(builder *strings.Builder, value any) error {
	switch typed := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		builder.WriteByte('{')
		for i, key := range keys {
			if i > 0 {
				builder.WriteByte(',')
			}
			encodedKey, err := json.Marshal(key)
			if err != nil {
				return fmt.Errorf("webhooks: canonical key encode failed: %w", err)
			}
			builder.Write(encodedKey)
			builder.WriteByte(':')
			if err := writeCanonical(builder, typed[key]); err != nil {
				return err
			}
		}
		builder.WriteByte('}')
		return nil
	case []any:
		builder.WriteByte('[')
		for i, item := range typed {
			if i > 0 {
				builder.WriteByte(',')
			}
			if err := writeCanonical(builder, item); err != nil {
				return err
			}
		}
		builder.WriteByte(']')
		return nil
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return fmt.Errorf("webhooks: canonical encode failed: %w", err)
		}
		builder.Write(encoded)
		return nil
	}
}
