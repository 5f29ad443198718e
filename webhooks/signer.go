package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

const (
	HeaderEvent         = "X-Webhook-Event"
	HeaderDeliveryID    = "X-Webhook-Delivery-Id"
	HeaderTenantID      = "X-Tenant-Id"
	HeaderSignature     = "X-Webhook-Signature"
	HeaderTimestamp     = "X-Webhook-Timestamp"
	HeaderCorrelationID = "X-Correlation-Id"

	signaturePrefix = "sha256="
)

// Signer produces and verifies HMAC-SHA256 signatures over webhook bodies.
// The signing base is "{unix timestamp}.{canonical body}" so a replayed body
// with a different timestamp never verifies.
type Signer struct{}

func NewSigner() Signer {
	return Signer{}
}

// SignPayload returns "sha256=<hex>" over the timestamp-prefixed body.
func (Signer) SignPayload(secret string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether the signature matches in constant time.
// Malformed input is a mismatch, never an error.
func (s Signer) VerifySignature(secret string, timestamp int64, body []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if !strings.HasPrefix(signature, signaturePrefix) {
		return false
	}
	expected := s.SignPayload(secret, timestamp, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignedHeaders builds the full outbound header set for one attempt.
func (s Signer) SignedHeaders(secret string, timestamp int64, body []byte, payload WirePayload) map[string]string {
	headers := map[string]string{
		"Content-Type":   "application/json",
		HeaderEvent:      payload.EventType,
		HeaderDeliveryID: payload.DeliveryID,
		HeaderTenantID:   payload.TenantID,
		HeaderSignature:  s.SignPayload(secret, timestamp, body),
		HeaderTimestamp:  strconv.FormatInt(timestamp, 10),
	}
	if correlation := strings.TrimSpace(payload.CorrelationID); correlation != "" {
		headers[HeaderCorrelationID] = correlation
	}
	return headers
}

func formatStatusError(statusCode int) error {
	return fmt.Errorf("webhooks: endpoint returned status %d", statusCode)
}
