package sqlstore

import "github.com/goliatone/go-delivery/core"

var (
	_ core.OutboxStore            = (*OutboxStore)(nil)
	_ core.DeliveryStore          = (*WebhookDeliveryStore)(nil)
	_ core.EndpointStore          = (*EndpointStore)(nil)
	_ core.EndpointStore          = (*CachedEndpointStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
