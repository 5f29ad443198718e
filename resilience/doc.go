// Package resilience composes rate limiting, circuit breaking, and retry
// with exponential backoff around a transport adapter. The composition order
// is fixed: limiter admission first, then the breaker, then retries inside
// the breaker so an exhausted retry run counts as a single breaker failure.
package resilience
