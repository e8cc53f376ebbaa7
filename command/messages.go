// Package command wraps the facade operations as go-command messages so host
// applications can route MFA operations through their existing dispatcher,
// with validation running before any engine work starts.
package command

import (
	"strings"

	"github.com/goliatone/go-mfa/core"
)

const (
	TypeCreateActivation      = "mfa.command.activation.create"
	TypeCommitActivation      = "mfa.command.activation.commit"
	TypeSignRequest           = "mfa.command.request.sign"
	TypeUpgradeProtocol       = "mfa.command.protocol.upgrade"
	TypeAddBiometryFactor     = "mfa.command.biometry.add"
	TypeRemoveBiometryFactor  = "mfa.command.biometry.remove"
	TypeFetchActivationStatus = "mfa.command.activation.fetch_status"
	TypeRemoveActivation      = "mfa.command.activation.remove"
)

type CreateActivationMessage struct {
	Request core.CreateActivationRequest
}

func (CreateActivationMessage) Type() string { return TypeCreateActivation }

func (m CreateActivationMessage) Validate() error {
	hasCode := strings.TrimSpace(m.Request.ActivationCode) != ""
	hasRecovery := strings.TrimSpace(m.Request.RecoveryCode) != "" && strings.TrimSpace(m.Request.RecoveryPuk) != ""
	hasIdentity := len(m.Request.IdentityAttributes) > 0
	if !hasCode && !hasRecovery && !hasIdentity {
		return commandValidationError("request",
			"an activation code, a recovery code pair, or identity attributes are required")
	}
	return nil
}

type CommitActivationMessage struct {
	Auth core.Authentication
}

func (CommitActivationMessage) Type() string { return TypeCommitActivation }

func (m CommitActivationMessage) Validate() error {
	if m.Auth.Kind() == "" {
		return commandValidationError("auth", "an authentication selector is required")
	}
	if m.Auth.Class() != core.FactorClassCommit {
		return commandValidationError("auth", "commit requires a commit-class selector")
	}
	return nil
}

type SignRequestMessage struct {
	Request core.SignatureRequest
	Auth    core.Authentication
}

func (SignRequestMessage) Type() string { return TypeSignRequest }

func (m SignRequestMessage) Validate() error {
	if strings.TrimSpace(m.Request.URIID) == "" {
		return commandValidationError("request.uri_id", "signature uri id is required")
	}
	if m.Auth.Kind() == "" {
		return commandValidationError("auth", "an authentication selector is required")
	}
	if m.Auth.Class() != core.FactorClassSigning {
		return commandValidationError("auth", "signing requires a signing-class selector")
	}
	return nil
}

type UpgradeProtocolMessage struct{}

func (UpgradeProtocolMessage) Type() string { return TypeUpgradeProtocol }

func (UpgradeProtocolMessage) Validate() error { return nil }

type AddBiometryFactorMessage struct {
	Password core.Password
}

func (AddBiometryFactorMessage) Type() string { return TypeAddBiometryFactor }

func (m AddBiometryFactorMessage) Validate() error {
	if m.Password.IsEmpty() {
		return commandValidationError("password", "the knowledge factor is required")
	}
	return nil
}

type RemoveBiometryFactorMessage struct{}

func (RemoveBiometryFactorMessage) Type() string { return TypeRemoveBiometryFactor }

func (RemoveBiometryFactorMessage) Validate() error { return nil }

type FetchActivationStatusMessage struct{}

func (FetchActivationStatusMessage) Type() string { return TypeFetchActivationStatus }

func (FetchActivationStatusMessage) Validate() error { return nil }

type RemoveActivationMessage struct {
	Auth core.Authentication
}

func (RemoveActivationMessage) Type() string { return TypeRemoveActivation }

func (m RemoveActivationMessage) Validate() error {
	if m.Auth.Kind() == "" {
		return commandValidationError("auth", "an authentication selector is required")
	}
	if m.Auth.Class() != core.FactorClassSigning {
		return commandValidationError("auth", "removal requires a signing-class selector")
	}
	return nil
}
