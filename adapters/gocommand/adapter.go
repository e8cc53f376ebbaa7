// Package gocommand wires the SDK's command messages into the go-command
// registry and dispatcher so hosts can drive MFA operations through their
// existing command bus.
package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	mfacommand "github.com/goliatone/go-mfa/command"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

// AddQueueResolver routes commands registered under key through a go-job
// queue, letting hosts defer maintenance commands instead of running them
// inline.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

// DispatchWithResult dispatches a result-bearing command and loads the value
// the handler stored in the context collector.
func DispatchWithResult[R any, T any](ctx context.Context, msg T) (R, error) {
	var zero R
	collector := command.NewResult[R]()
	ctx = command.ContextWithResult(ctx, collector)
	if err := commanddispatcher.Dispatch(ctx, msg); err != nil {
		return zero, err
	}
	out, ok := collector.Load()
	if !ok {
		return zero, fmt.Errorf("gocommand: no result produced for %T", msg)
	}
	return out, nil
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// Subscriptions owns the dispatcher subscriptions for one registration pass.
type Subscriptions struct {
	subs []commanddispatcher.Subscription
}

func (s *Subscriptions) Unsubscribe() {
	if s == nil {
		return
	}
	for _, sub := range s.subs {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
	s.subs = nil
}

// RegisterMFACommands registers and subscribes the full MFA command surface
// against one facade. On any failure, already-made subscriptions are
// released before returning.
func RegisterMFACommands(
	adapter *RegistryAdapter,
	service mfacommand.MutatingService,
	runnerOpts ...runner.Option,
) (*Subscriptions, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if service == nil {
		return nil, fmt.Errorf("gocommand: mutating service is required")
	}

	group := &Subscriptions{}
	steps := []func() error{
		func() error {
			return appendSubscription(adapter, group, mfacommand.NewCreateActivationCommand(service), runnerOpts...)
		},
		func() error {
			return appendSubscription(adapter, group, mfacommand.NewCommitActivationCommand(service), runnerOpts...)
		},
		func() error {
			return appendSubscription(adapter, group, mfacommand.NewSignRequestCommand(service), runnerOpts...)
		},
		func() error {
			return appendSubscription(adapter, group, mfacommand.NewUpgradeProtocolCommand(service), runnerOpts...)
		},
		func() error {
			return appendSubscription(adapter, group, mfacommand.NewAddBiometryFactorCommand(service), runnerOpts...)
		},
		func() error {
			return appendSubscription(adapter, group, mfacommand.NewRemoveBiometryFactorCommand(service), runnerOpts...)
		},
		func() error {
			return appendSubscription(adapter, group, mfacommand.NewFetchActivationStatusCommand(service), runnerOpts...)
		},
		func() error {
			return appendSubscription(adapter, group, mfacommand.NewRemoveActivationCommand(service), runnerOpts...)
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			group.Unsubscribe()
			return nil, err
		}
	}
	return group, nil
}

func appendSubscription[T any](
	adapter *RegistryAdapter,
	group *Subscriptions,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) error {
	subscription, err := RegisterAndSubscribe(adapter, cmd, runnerOpts...)
	if err != nil {
		return err
	}
	group.subs = append(group.subs, subscription)
	return nil
}
