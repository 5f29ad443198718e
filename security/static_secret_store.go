package security

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-delivery/core"
)

// StaticSecretStore serves secrets from an in-memory map. It backs tests and
// single-tenant deployments where secrets arrive through configuration.
type StaticSecretStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

func NewStaticSecretStore(secrets map[string]string) *StaticSecretStore {
	store := &StaticSecretStore{secrets: map[string]string{}}
	for ref, secret := range secrets {
		trimmed := strings.TrimSpace(ref)
		if trimmed == "" {
			continue
		}
		store.secrets[trimmed] = secret
	}
	return store
}

func (s *StaticSecretStore) SetSecret(secretRef string, secret string) error {
	if s == nil {
		return fmt.Errorf("security: static secret store is nil")
	}
	trimmed := strings.TrimSpace(secretRef)
	if trimmed == "" {
		return fmt.Errorf("security: secret ref is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[trimmed] = secret
	return nil
}

func (s *StaticSecretStore) GetSecret(_ context.Context, secretRef string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("security: static secret store is nil")
	}
	trimmed := strings.TrimSpace(secretRef)
	if trimmed == "" {
		return "", fmt.Errorf("security: secret ref is required")
	}
	s.mu.RLock()
	secret, ok := s.secrets[trimmed]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("security: secret %q not found", trimmed)
	}
	return secret, nil
}

var _ core.SecretStore = (*StaticSecretStore)(nil)
