package mfa

import (
	"fmt"

	mfacommand "github.com/goliatone/go-mfa/command"
)

// CommandService is the mutating surface the command bundle wraps.
// *core.Service satisfies it.
type CommandService = mfacommand.MutatingService

// Commands bundles one command wrapper per facade operation, ready to hand
// to a dispatcher or a queue registry.
type Commands struct {
	CreateActivation      *mfacommand.CreateActivationCommand
	CommitActivation      *mfacommand.CommitActivationCommand
	SignRequest           *mfacommand.SignRequestCommand
	UpgradeProtocol       *mfacommand.UpgradeProtocolCommand
	AddBiometryFactor     *mfacommand.AddBiometryFactorCommand
	RemoveBiometryFactor  *mfacommand.RemoveBiometryFactorCommand
	FetchActivationStatus *mfacommand.FetchActivationStatusCommand
	RemoveActivation      *mfacommand.RemoveActivationCommand
}

// Facade ties one service to its command bundle.
type Facade struct {
	service  CommandService
	commands Commands
}

func NewFacade(service CommandService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("mfa: command service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			CreateActivation:      mfacommand.NewCreateActivationCommand(service),
			CommitActivation:      mfacommand.NewCommitActivationCommand(service),
			SignRequest:           mfacommand.NewSignRequestCommand(service),
			UpgradeProtocol:       mfacommand.NewUpgradeProtocolCommand(service),
			AddBiometryFactor:     mfacommand.NewAddBiometryFactorCommand(service),
			RemoveBiometryFactor:  mfacommand.NewRemoveBiometryFactorCommand(service),
			FetchActivationStatus: mfacommand.NewFetchActivationStatusCommand(service),
			RemoveActivation:      mfacommand.NewRemoveActivationCommand(service),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Service() CommandService {
	if f == nil {
		return nil
	}
	return f.service
}
