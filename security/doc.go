// Package security resolves webhook signing secrets. Endpoint rows never
// store secret material, only a secret ref; the stores here turn refs into
// secrets from static config, the process environment, or a layered
// primary/fallback arrangement.
package security
