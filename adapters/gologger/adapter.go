// Package gologger bridges the SDK's go-logger wiring into the go-job logger
// contracts so maintenance workers log through the same sink as the facade.
package gologger

import (
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// MaintenanceLoggerName scopes maintenance-worker log lines apart from the
// facade's own logger.
const MaintenanceLoggerName = "mfa.maintenance"

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

// ForMaintenanceWorker resolves the host's logger wiring under the
// maintenance name with deterministic precedence provider > logger > nop,
// then returns the resolved logger alongside the go-job bridges a
// maintenance worker consumes.
func ForMaintenanceWorker(
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := glog.Resolve(MaintenanceLoggerName, provider, logger)
	return resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}
