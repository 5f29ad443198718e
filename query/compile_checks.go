package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-delivery/core"
)

var (
	_ gocmd.Querier[GetEventMessage, core.OutboxEvent]                      = (*GetEventQuery)(nil)
	_ gocmd.Querier[EventStatsMessage, core.EventStats]                     = (*EventStatsQuery)(nil)
	_ gocmd.Querier[GetDeliveryMessage, core.WebhookDelivery]               = (*GetDeliveryQuery)(nil)
	_ gocmd.Querier[DeliveryStatsMessage, core.DeliveryStats]               = (*DeliveryStatsQuery)(nil)
	_ gocmd.Querier[GetEndpointMessage, core.WebhookEndpoint]               = (*GetEndpointQuery)(nil)
	_ gocmd.Querier[ListSubscribedEndpointsMessage, []core.WebhookEndpoint] = (*ListSubscribedEndpointsQuery)(nil)
)
