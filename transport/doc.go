// Package transport implements the outbound adapters that carry webhook
// deliveries and outbox events off the box. Adapters satisfy
// core.TransportAdapter and stay free of retry or throttling concerns;
// the resilience package layers those on top.
package transport
