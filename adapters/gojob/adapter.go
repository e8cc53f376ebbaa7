// Package gojob runs the SDK's background maintenance through go-job queues:
// finishing pending protocol upgrades and refreshing the server-side
// activation status without blocking a user-facing operation.
package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"

	"github.com/goliatone/go-mfa/core"
)

const (
	JobIDProtocolUpgrade = "mfa.protocol.upgrade"
	JobIDStatusRefresh   = "mfa.status.refresh"
)

const instanceIDParameter = "instance_id"

// MaintenanceService is the slice of the facade the maintenance jobs need.
// *core.Service satisfies it.
type MaintenanceService interface {
	UpgradeProtocol(ctx context.Context) error
	FetchActivationStatus(ctx context.Context) (core.ActivationStatus, error)
	HasValidActivation() bool
}

// RetryPolicy bounds queue retries so a failing maintenance job cannot loop
// forever.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// Normalize enforces the retry bounds on a nack about to be issued for the
// given attempt number.
func (p RetryPolicy) Normalize(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// NewProtocolUpgradeMessage builds the queue message for one instance's
// protocol upgrade. The idempotency key collapses duplicate enqueues for the
// same instance.
func NewProtocolUpgradeMessage(instanceID string) *job.ExecutionMessage {
	return maintenanceMessage(JobIDProtocolUpgrade, instanceID)
}

// NewStatusRefreshMessage builds the queue message for one instance's
// activation status refresh.
func NewStatusRefreshMessage(instanceID string) *job.ExecutionMessage {
	return maintenanceMessage(JobIDStatusRefresh, instanceID)
}

func maintenanceMessage(jobID string, instanceID string) *job.ExecutionMessage {
	trimmed := strings.TrimSpace(instanceID)
	return &job.ExecutionMessage{
		JobID:          jobID,
		Parameters:     map[string]any{instanceIDParameter: trimmed},
		IdempotencyKey: jobID + "::" + trimmed,
		DedupPolicy:    job.DeduplicationPolicy("drop"),
	}
}

// MaintenanceScheduler enqueues maintenance work onto a go-job queue.
type MaintenanceScheduler struct {
	enqueuer   queue.Enqueuer
	instanceID string
}

func NewMaintenanceScheduler(enqueuer queue.Enqueuer, instance core.InstanceConfig) (*MaintenanceScheduler, error) {
	if enqueuer == nil {
		return nil, fmt.Errorf("gojob: enqueuer is required")
	}
	if strings.TrimSpace(instance.InstanceID) == "" {
		return nil, core.NewInvalidConfigurationError(core.ReasonInvalidInstanceConfiguration,
			"gojob: instance id is required")
	}
	return &MaintenanceScheduler{
		enqueuer:   enqueuer,
		instanceID: strings.TrimSpace(instance.InstanceID),
	}, nil
}

func (s *MaintenanceScheduler) ScheduleProtocolUpgrade(ctx context.Context) error {
	if s == nil || s.enqueuer == nil {
		return fmt.Errorf("gojob: scheduler is not configured")
	}
	return s.enqueuer.Enqueue(ctx, NewProtocolUpgradeMessage(s.instanceID))
}

func (s *MaintenanceScheduler) ScheduleStatusRefresh(ctx context.Context) error {
	if s == nil || s.enqueuer == nil {
		return fmt.Errorf("gojob: scheduler is not configured")
	}
	return s.enqueuer.Enqueue(ctx, NewStatusRefreshMessage(s.instanceID))
}

// MaintenanceRunner executes dequeued maintenance messages against the
// facade. Unknown job ids fail fast so a misrouted queue shows up in the
// dead letter rather than being silently acked.
type MaintenanceRunner struct {
	service MaintenanceService
	logger  core.Logger
}

func NewMaintenanceRunner(service MaintenanceService, logger core.Logger) (*MaintenanceRunner, error) {
	if service == nil {
		return nil, fmt.Errorf("gojob: maintenance service is required")
	}
	return &MaintenanceRunner{service: service, logger: logger}, nil
}

func (r *MaintenanceRunner) Handle(ctx context.Context, msg *job.ExecutionMessage) error {
	if r == nil || r.service == nil {
		return fmt.Errorf("gojob: runner is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}

	switch msg.JobID {
	case JobIDProtocolUpgrade:
		return r.service.UpgradeProtocol(ctx)
	case JobIDStatusRefresh:
		if !r.service.HasValidActivation() {
			r.logInfo("skipping status refresh, no committed activation", msg)
			return nil
		}
		status, err := r.service.FetchActivationStatus(ctx)
		if err != nil {
			return err
		}
		r.logInfo(fmt.Sprintf("activation status %q, %d attempts remaining",
			status.State, status.RemainingCount), msg)
		return nil
	default:
		return fmt.Errorf("gojob: unknown maintenance job %q", msg.JobID)
	}
}

func (r *MaintenanceRunner) logInfo(message string, msg *job.ExecutionMessage) {
	if r == nil || r.logger == nil {
		return
	}
	r.logger.Info(message, "job_id", msg.JobID, "idempotency_key", msg.IdempotencyKey)
}

// DeliveryHandler consumes one delivery: run the message, ack on success,
// nack within the retry policy otherwise.
type DeliveryHandler struct {
	runner *MaintenanceRunner
	policy RetryPolicy
}

func NewDeliveryHandler(runner *MaintenanceRunner, policy RetryPolicy) (*DeliveryHandler, error) {
	if runner == nil {
		return nil, fmt.Errorf("gojob: maintenance runner is required")
	}
	return &DeliveryHandler{runner: runner, policy: policy}, nil
}

func (h *DeliveryHandler) Consume(ctx context.Context, delivery queue.Delivery, attempt int) error {
	if h == nil || h.runner == nil {
		return fmt.Errorf("gojob: delivery handler is not configured")
	}
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}
	if err := h.runner.Handle(ctx, delivery.Message()); err != nil {
		nack := h.policy.Normalize(queue.NackOptions{Requeue: true, Reason: err.Error()}, attempt)
		if nackErr := delivery.Nack(ctx, nack); nackErr != nil {
			return nackErr
		}
		return err
	}
	return delivery.Ack(ctx)
}

// LoggingWorkerHook reports worker lifecycle transitions through the SDK
// logger.
type LoggingWorkerHook struct {
	logger core.Logger
}

func NewLoggingWorkerHook(logger core.Logger) *LoggingWorkerHook {
	return &LoggingWorkerHook{logger: logger}
}

func (h *LoggingWorkerHook) OnStart(_ context.Context, event worker.Event) {
	h.log("maintenance job started", event)
}

func (h *LoggingWorkerHook) OnSuccess(_ context.Context, event worker.Event) {
	h.log("maintenance job succeeded", event)
}

func (h *LoggingWorkerHook) OnFailure(_ context.Context, event worker.Event) {
	h.log("maintenance job failed", event)
}

func (h *LoggingWorkerHook) OnRetry(_ context.Context, event worker.Event) {
	h.log("maintenance job retrying", event)
}

func (h *LoggingWorkerHook) log(message string, event worker.Event) {
	if h == nil || h.logger == nil {
		return
	}
	jobID := ""
	if event.Message != nil {
		jobID = event.Message.JobID
	} else if event.Delivery != nil && event.Delivery.Message() != nil {
		jobID = event.Delivery.Message().JobID
	}
	fields := []any{"job_id", jobID, "attempt", event.Attempt}
	if event.Err != nil {
		fields = append(fields, "error", event.Err.Error())
	}
	h.logger.Info(message, fields...)
}

var (
	_ worker.Hook        = (*LoggingWorkerHook)(nil)
	_ MaintenanceService = (*core.Service)(nil)
)
