package security

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-delivery/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const secretCacheKeyPrefix = "go-delivery::webhook_secret::v1"

// CachingSecretStore keeps resolved secrets in a short-lived cache so the
// signer does not hit the backing store on every delivery attempt. Callers
// invalidate on rotation.
type CachingSecretStore struct {
	base  core.SecretStore
	cache repositorycache.CacheService
}

func NewCachingSecretStore(
	base core.SecretStore,
	cacheService repositorycache.CacheService,
) (*CachingSecretStore, error) {
	if base == nil {
		return nil, fmt.Errorf("security: base secret store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("security: secret cache service is required")
	}
	return &CachingSecretStore{base: base, cache: cacheService}, nil
}

// SecretCacheKey returns the deterministic cache key for a secret ref:
// go-delivery::webhook_secret::v1::<ref> with the ref URL-path escaped.
func SecretCacheKey(secretRef string) (string, error) {
	trimmed := strings.TrimSpace(secretRef)
	if trimmed == "" {
		return "", fmt.Errorf("security: secret ref is required")
	}
	return secretCacheKeyPrefix + "::" + url.PathEscape(trimmed), nil
}

func (s *CachingSecretStore) GetSecret(ctx context.Context, secretRef string) (string, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return "", fmt.Errorf("security: caching secret store is not configured")
	}
	cacheKey, err := SecretCacheKey(secretRef)
	if err != nil {
		return "", err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (string, error) {
		return s.base.GetSecret(ctx, secretRef)
	})
}

// Invalidate drops a cached secret after rotation.
func (s *CachingSecretStore) Invalidate(ctx context.Context, secretRef string) error {
	if s == nil || s.cache == nil {
		return fmt.Errorf("security: caching secret store is not configured")
	}
	cacheKey, err := SecretCacheKey(secretRef)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

var _ core.SecretStore = (*CachingSecretStore)(nil)
