package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ LifecycleEventBus = (*MemoryEventBus)(nil)
	_ PreferenceStore   = (*MemoryPreferenceStore)(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
