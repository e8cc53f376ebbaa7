package gologger

import (
	"context"
	"testing"

	glog "github.com/goliatone/go-logger/glog"
)

func TestForMaintenanceWorkerPrecedence(t *testing.T) {
	loggerOnly := &capturingLogger{id: "logger"}
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	resolved, jobProvider, jobLogger := ForMaintenanceWorker(provider, loggerOnly)
	if got := resolved.(*capturingLogger); got.id != "provider" {
		t.Fatalf("expected provider logger precedence, got %q", got.id)
	}
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job bridges alongside the resolved logger")
	}

	resolved, jobProvider, _ = ForMaintenanceWorker(nil, loggerOnly)
	if got := resolved.(*capturingLogger); got.id != "logger" {
		t.Fatalf("expected direct logger when provider is nil, got %q", got.id)
	}
	if jobProvider == nil {
		t.Fatalf("expected provider wrapper derived from the logger")
	}

	resolved, _, jobLogger = ForMaintenanceWorker(nil, nil)
	if resolved == nil {
		t.Fatalf("expected nop logger fallback")
	}
	if jobLogger == nil {
		t.Fatalf("expected go-job bridge for the nop fallback")
	}
}

func TestGoJobBridgeCompatibility(t *testing.T) {
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	_, jobProvider, jobLogger := ForMaintenanceWorker(provider, nil)
	if jobProvider == nil {
		t.Fatalf("expected go-job provider bridge")
	}
	if jobLogger == nil {
		t.Fatalf("expected go-job logger bridge")
	}

	bridged := jobProvider.GetLogger(MaintenanceLoggerName)
	bridged.Info("upgrade scheduled", "instance_id", "instance-1")

	captured := providerLogger.lastInfo
	if captured.msg != "upgrade scheduled" {
		t.Fatalf("expected bridged message, got %q", captured.msg)
	}
	if captured.args[0] != "instance_id" || captured.args[1] != "instance-1" {
		t.Fatalf("expected bridged args, got %#v", captured.args)
	}
}

func TestBridgesRejectNilInputs(t *testing.T) {
	if ToJobProvider(nil) != nil {
		t.Fatal("nil provider must bridge to nil")
	}
	if ToJobLogger(nil) != nil {
		t.Fatal("nil logger must bridge to nil")
	}
}

var (
	_ glog.Logger         = (*capturingLogger)(nil)
	_ glog.LoggerProvider = (*capturingProvider)(nil)
)

type capturingProvider struct {
	logger *capturingLogger
}

func (p *capturingProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type infoCall struct {
	msg  string
	args []any
}

type capturingLogger struct {
	id       string
	lastInfo infoCall
}

func (l *capturingLogger) Trace(string, ...any) {}
func (l *capturingLogger) Debug(string, ...any) {}
func (l *capturingLogger) Warn(string, ...any)  {}
func (l *capturingLogger) Error(string, ...any) {}
func (l *capturingLogger) Fatal(string, ...any) {}

func (l *capturingLogger) Info(msg string, args ...any) {
	l.lastInfo = infoCall{
		msg:  msg,
		args: append([]any(nil), args...),
	}
}

func (l *capturingLogger) WithContext(context.Context) glog.Logger {
	return l
}
