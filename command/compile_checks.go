package command

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-mfa/core"
)

var (
	_ gocmd.Commander[CreateActivationMessage]      = (*CreateActivationCommand)(nil)
	_ gocmd.Commander[CommitActivationMessage]      = (*CommitActivationCommand)(nil)
	_ gocmd.Commander[SignRequestMessage]           = (*SignRequestCommand)(nil)
	_ gocmd.Commander[UpgradeProtocolMessage]       = (*UpgradeProtocolCommand)(nil)
	_ gocmd.Commander[AddBiometryFactorMessage]     = (*AddBiometryFactorCommand)(nil)
	_ gocmd.Commander[RemoveBiometryFactorMessage]  = (*RemoveBiometryFactorCommand)(nil)
	_ gocmd.Commander[FetchActivationStatusMessage] = (*FetchActivationStatusCommand)(nil)
	_ gocmd.Commander[RemoveActivationMessage]      = (*RemoveActivationCommand)(nil)

	_ MutatingService = (*core.Service)(nil)
)
