package gologger

import (
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// ToJobProvider maps a glog provider to the go-job logger provider contract.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

// ToJobLogger maps a glog logger to the go-job logger contract.
func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves the dispatcher logger then returns equivalent go-job
// adapters so queue workers log through the same sink.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}

// Per-component logger names so outbox, fanout, and webhook log lines are
// separable in aggregated output.
const (
	LoggerNameOutbox   = "delivery.outbox"
	LoggerNameFanout   = "delivery.fanout"
	LoggerNameWebhooks = "delivery.webhooks"
)

// ComponentLogger resolves a named logger for one pipeline component,
// falling back to the shared logger when the provider has no named child.
func ComponentLogger(name string, provider glog.LoggerProvider, logger glog.Logger) glog.Logger {
	resolvedProvider, resolved := Resolve(name, provider, logger)
	if resolvedProvider != nil {
		if named := resolvedProvider.GetLogger(name); named != nil {
			return glog.Ensure(named)
		}
	}
	return glog.Ensure(resolved)
}

// PipelineLoggers resolves the three component loggers in one call, in
// outbox, fanout, webhooks order.
func PipelineLoggers(provider glog.LoggerProvider, logger glog.Logger) (glog.Logger, glog.Logger, glog.Logger) {
	return ComponentLogger(LoggerNameOutbox, provider, logger),
		ComponentLogger(LoggerNameFanout, provider, logger),
		ComponentLogger(LoggerNameWebhooks, provider, logger)
}
