package security

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goliatone/go-delivery/core"
)

const defaultEnvSecretPrefix = "WEBHOOK_SECRET_"

// EnvSecretStore resolves secret refs against the process environment. A ref
// like "tenants/acme/orders" maps to WEBHOOK_SECRET_TENANTS_ACME_ORDERS.
type EnvSecretStore struct {
	prefix string
	lookup func(key string) (string, bool)
}

type EnvOption func(*EnvSecretStore)

func WithEnvSecretPrefix(prefix string) EnvOption {
	return func(s *EnvSecretStore) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.prefix = trimmed
		}
	}
}

func WithEnvLookup(lookup func(key string) (string, bool)) EnvOption {
	return func(s *EnvSecretStore) {
		if lookup != nil {
			s.lookup = lookup
		}
	}
}

func NewEnvSecretStore(opts ...EnvOption) *EnvSecretStore {
	store := &EnvSecretStore{
		prefix: defaultEnvSecretPrefix,
		lookup: os.LookupEnv,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(store)
	}
	return store
}

func (s *EnvSecretStore) GetSecret(_ context.Context, secretRef string) (string, error) {
	if s == nil || s.lookup == nil {
		return "", fmt.Errorf("security: env secret store is not configured")
	}
	key, err := s.EnvKey(secretRef)
	if err != nil {
		return "", err
	}
	secret, ok := s.lookup(key)
	if !ok || strings.TrimSpace(secret) == "" {
		return "", fmt.Errorf("security: secret %q not found in environment as %s", strings.TrimSpace(secretRef), key)
	}
	return secret, nil
}

// EnvKey returns the environment variable name a ref resolves to.
func (s *EnvSecretStore) EnvKey(secretRef string) (string, error) {
	trimmed := strings.TrimSpace(secretRef)
	if trimmed == "" {
		return "", fmt.Errorf("security: secret ref is required")
	}
	var builder strings.Builder
	builder.WriteString(s.prefix)
	for _, r := range strings.ToUpper(trimmed) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			builder.WriteRune(r)
		default:
			builder.WriteRune('_')
		}
	}
	return builder.String(), nil
}

var _ core.SecretStore = (*EnvSecretStore)(nil)
