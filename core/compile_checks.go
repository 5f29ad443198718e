package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ FeatureFlags   = StaticFlags{}
	_ ReadinessGuard = AlwaysReady{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
