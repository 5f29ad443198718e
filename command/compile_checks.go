package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[EnqueueEventMessage]     = (*EnqueueEventCommand)(nil)
	_ gocmd.Commander[DispatchOutboxMessage]   = (*DispatchOutboxCommand)(nil)
	_ gocmd.Commander[ExpandFanoutMessage]     = (*ExpandFanoutCommand)(nil)
	_ gocmd.Commander[DispatchWebhooksMessage] = (*DispatchWebhooksCommand)(nil)
	_ gocmd.Commander[ReleaseStuckMessage]     = (*ReleaseStuckCommand)(nil)
	_ gocmd.Commander[ReplayEventMessage]      = (*ReplayEventCommand)(nil)
	_ gocmd.Commander[ReplayDeliveryMessage]   = (*ReplayDeliveryCommand)(nil)
)
