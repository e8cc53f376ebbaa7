package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-mfa/core"
)

// MutatingService is the slice of the facade the command layer needs.
// *core.Service satisfies it.
type MutatingService interface {
	CreateActivation(ctx context.Context, req core.CreateActivationRequest) (core.CreateActivationResult, error)
	CommitActivation(ctx context.Context, auth core.Authentication) error
	SignRequest(ctx context.Context, req core.SignatureRequest, auth core.Authentication) (core.SignatureResult, error)
	UpgradeProtocol(ctx context.Context) error
	AddBiometryFactor(ctx context.Context, password core.Password) error
	RemoveBiometryFactor(ctx context.Context) error
	FetchActivationStatus(ctx context.Context) (core.ActivationStatus, error)
	RemoveActivation(ctx context.Context, auth core.Authentication) error
}

type CreateActivationCommand struct {
	service MutatingService
}

func NewCreateActivationCommand(service MutatingService) *CreateActivationCommand {
	return &CreateActivationCommand{service: service}
}

func (c *CreateActivationCommand) Execute(ctx context.Context, msg CreateActivationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: activation service is required")
	}
	out, err := c.service.CreateActivation(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CommitActivationCommand struct {
	service MutatingService
}

func NewCommitActivationCommand(service MutatingService) *CommitActivationCommand {
	return &CommitActivationCommand{service: service}
}

func (c *CommitActivationCommand) Execute(ctx context.Context, msg CommitActivationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: activation service is required")
	}
	return c.service.CommitActivation(ctx, msg.Auth)
}

type SignRequestCommand struct {
	service MutatingService
}

func NewSignRequestCommand(service MutatingService) *SignRequestCommand {
	return &SignRequestCommand{service: service}
}

func (c *SignRequestCommand) Execute(ctx context.Context, msg SignRequestMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: signing service is required")
	}
	out, err := c.service.SignRequest(ctx, msg.Request, msg.Auth)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpgradeProtocolCommand struct {
	service MutatingService
}

func NewUpgradeProtocolCommand(service MutatingService) *UpgradeProtocolCommand {
	return &UpgradeProtocolCommand{service: service}
}

func (c *UpgradeProtocolCommand) Execute(ctx context.Context, _ UpgradeProtocolMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: protocol service is required")
	}
	return c.service.UpgradeProtocol(ctx)
}

type AddBiometryFactorCommand struct {
	service MutatingService
}

func NewAddBiometryFactorCommand(service MutatingService) *AddBiometryFactorCommand {
	return &AddBiometryFactorCommand{service: service}
}

func (c *AddBiometryFactorCommand) Execute(ctx context.Context, msg AddBiometryFactorMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: biometry service is required")
	}
	return c.service.AddBiometryFactor(ctx, msg.Password)
}

type RemoveBiometryFactorCommand struct {
	service MutatingService
}

func NewRemoveBiometryFactorCommand(service MutatingService) *RemoveBiometryFactorCommand {
	return &RemoveBiometryFactorCommand{service: service}
}

func (c *RemoveBiometryFactorCommand) Execute(ctx context.Context, _ RemoveBiometryFactorMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: biometry service is required")
	}
	return c.service.RemoveBiometryFactor(ctx)
}

type FetchActivationStatusCommand struct {
	service MutatingService
}

func NewFetchActivationStatusCommand(service MutatingService) *FetchActivationStatusCommand {
	return &FetchActivationStatusCommand{service: service}
}

func (c *FetchActivationStatusCommand) Execute(ctx context.Context, _ FetchActivationStatusMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: activation service is required")
	}
	out, err := c.service.FetchActivationStatus(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RemoveActivationCommand struct {
	service MutatingService
}

func NewRemoveActivationCommand(service MutatingService) *RemoveActivationCommand {
	return &RemoveActivationCommand{service: service}
}

func (c *RemoveActivationCommand) Execute(ctx context.Context, msg RemoveActivationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: activation service is required")
	}
	return c.service.RemoveActivation(ctx, msg.Auth)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
