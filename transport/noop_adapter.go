package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/goliatone/go-delivery/core"
)

const KindDryRun = "dryrun"

// DryRunAdapter accepts every request without touching the network. Wiring
// it as the webhook transport lets an operator exercise the full pipeline,
// including state transitions and signing, against production data safely.
type DryRunAdapter struct {
	accepted atomic.Int64
}

func NewDryRunAdapter() *DryRunAdapter {
	return &DryRunAdapter{}
}

func (*DryRunAdapter) Kind() string {
	return KindDryRun
}

// Accepted reports how many requests the adapter has swallowed.
func (a *DryRunAdapter) Accepted() int64 {
	if a == nil {
		return 0
	}
	return a.accepted.Load()
}

func (a *DryRunAdapter) Do(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil {
		return core.TransportResponse{}, fmt.Errorf("transport: adapter is nil")
	}
	a.accepted.Add(1)
	return core.TransportResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{},
		Body:       nil,
		Metadata: map[string]any{
			"kind":    KindDryRun,
			"dry_run": true,
			"url":     strings.TrimSpace(req.URL),
		},
	}, nil
}

// UnsupportedAdapter stands in for a transport kind that is referenced by
// configuration but not wired in this deployment. Every call fails with a
// stable message so misconfiguration surfaces at dispatch time instead of
// silently dropping deliveries.
type UnsupportedAdapter struct {
	kind   string
	reason string
}

func NewUnsupportedAdapter(kind string, reason string) *UnsupportedAdapter {
	return &UnsupportedAdapter{
		kind:   strings.TrimSpace(strings.ToLower(kind)),
		reason: strings.TrimSpace(reason),
	}
}

func (a *UnsupportedAdapter) Kind() string {
	if a == nil {
		return ""
	}
	return a.kind
}

func (a *UnsupportedAdapter) Do(context.Context, core.TransportRequest) (core.TransportResponse, error) {
	if a == nil {
		return core.TransportResponse{}, fmt.Errorf("transport: adapter is nil")
	}
	if a.reason != "" {
		return core.TransportResponse{}, fmt.Errorf(
			"transport: %s adapter is not configured: %s",
			a.kind,
			a.reason,
		)
	}
	return core.TransportResponse{}, fmt.Errorf(
		"transport: %s adapter is not configured",
		a.kind,
	)
}

var (
	_ core.TransportAdapter = (*DryRunAdapter)(nil)
	_ core.TransportAdapter = (*UnsupportedAdapter)(nil)
)
