package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-delivery/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const endpointCacheKeyPrefix = "go-delivery::webhook_endpoint::v1"
const subscriptionCacheKeyPrefix = "go-delivery::webhook_subscriptions::v1"

// CachedEndpointStore front-loads endpoint reads with a cache. Endpoint rows
// change rarely and are read on every delivery attempt, so this is the one
// hot read path worth caching.
type CachedEndpointStore struct {
	base  core.EndpointStore
	cache repositorycache.CacheService
}

func NewCachedEndpointStore(
	base core.EndpointStore,
	cacheService repositorycache.CacheService,
) (*CachedEndpointStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base endpoint store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: endpoint cache service is required")
	}
	return &CachedEndpointStore{base: base, cache: cacheService}, nil
}

// EndpointCacheKey returns the deterministic cache key for a single endpoint:
// go-delivery::webhook_endpoint::v1::<id> with the id URL-path escaped.
func EndpointCacheKey(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", fmt.Errorf("sqlstore: endpoint id is required")
	}
	return endpointCacheKeyPrefix + "::" + url.PathEscape(trimmed), nil
}

// SubscriptionCacheKey returns the deterministic cache key for a tenant's
// subscriber list per event type.
func SubscriptionCacheKey(tenantID string, eventType string) (string, error) {
	tenant := strings.TrimSpace(tenantID)
	event := strings.TrimSpace(eventType)
	if tenant == "" || event == "" {
		return "", fmt.Errorf("sqlstore: tenant id and event type are required")
	}
	return strings.Join(
		[]string{subscriptionCacheKeyPrefix, url.PathEscape(tenant), url.PathEscape(event)},
		"::",
	), nil
}

func (s *CachedEndpointStore) GetEndpoint(ctx context.Context, id string) (core.WebhookEndpoint, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.WebhookEndpoint{}, fmt.Errorf("sqlstore: cached endpoint store is not configured")
	}
	cacheKey, err := EndpointCacheKey(id)
	if err != nil {
		return core.WebhookEndpoint{}, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.WebhookEndpoint, error) {
		return s.base.GetEndpoint(ctx, id)
	})
}

func (s *CachedEndpointStore) ListSubscribed(ctx context.Context, tenantID string, eventType string) ([]core.WebhookEndpoint, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached endpoint store is not configured")
	}
	cacheKey, err := SubscriptionCacheKey(tenantID, eventType)
	if err != nil {
		return nil, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) ([]core.WebhookEndpoint, error) {
		return s.base.ListSubscribed(ctx, tenantID, eventType)
	})
}

// InvalidateEndpoint drops the cached row after a registration change.
func (s *CachedEndpointStore) InvalidateEndpoint(ctx context.Context, id string) error {
	if s == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached endpoint store is not configured")
	}
	cacheKey, err := EndpointCacheKey(id)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

// InvalidateSubscriptions drops one tenant's cached subscriber list for an
// event type.
func (s *CachedEndpointStore) InvalidateSubscriptions(ctx context.Context, tenantID string, eventType string) error {
	if s == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached endpoint store is not configured")
	}
	cacheKey, err := SubscriptionCacheKey(tenantID, eventType)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}
