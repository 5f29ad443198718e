// Package webhooks implements the outbound webhook surface: deterministic
// wire payloads, HMAC signing, and the HTTP sender used by the delivery
// dispatcher.
package webhooks
