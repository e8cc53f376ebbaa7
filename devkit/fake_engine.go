// Package devkit ships the fixtures hosts and store authors need to test
// against the SDK without a real cryptographic engine or platform secure
// store: a scripted engine, scripted biometric contexts, and conformance
// validators for the capability interfaces.
package devkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/goliatone/go-mfa/core"
)

type fakeEngineState struct {
	Phase          core.ActivationPhase `json:"phase"`
	PendingUpgrade bool                 `json:"pending_upgrade"`
	SignatureCount int                  `json:"signature_count"`
}

// FakeCryptoEngine is a deterministic in-process engine. It honors the full
// engine contract, serializes its state as JSON, and exposes scripting hooks
// so tests can force failures at each boundary.
type FakeCryptoEngine struct {
	mu sync.Mutex

	state        fakeEngineState
	commitKeys   *core.SignatureFactorKeys
	lastSignKeys *core.SignatureFactorKeys

	commitErr  error
	signErr    error
	upgradeErr error

	upgradeCalls int
}

func NewFakeCryptoEngine() *FakeCryptoEngine {
	return &FakeCryptoEngine{state: fakeEngineState{Phase: core.ActivationPhaseNone}}
}

// FailCommitWith makes the next CommitActivation calls return err.
func (e *FakeCryptoEngine) FailCommitWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commitErr = err
}

// FailSignatureWith makes the next ComputeSignature calls return err.
func (e *FakeCryptoEngine) FailSignatureWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.signErr = err
}

// FailUpgradeWith makes the next UpgradeProtocol calls return err.
func (e *FakeCryptoEngine) FailUpgradeWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.upgradeErr = err
}

// SetPendingUpgrade marks the protocol as needing an upgrade.
func (e *FakeCryptoEngine) SetPendingUpgrade(pending bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.PendingUpgrade = pending
}

func (e *FakeCryptoEngine) UpgradeCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.upgradeCalls
}

// CommitKeys returns the factor keys of the last successful commit, nil when
// none happened.
func (e *FakeCryptoEngine) CommitKeys() *core.SignatureFactorKeys {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commitKeys
}

// LastSignatureKeys returns the factor keys of the last successful signature,
// nil when none happened.
func (e *FakeCryptoEngine) LastSignatureKeys() *core.SignatureFactorKeys {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSignKeys
}

func (e *FakeCryptoEngine) CreateActivation(_ context.Context, req core.CreateActivationRequest) (core.CreateActivationResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Phase != core.ActivationPhaseNone {
		return core.CreateActivationResult{}, &core.EngineError{Code: core.EngineCodeActivationPresent}
	}
	e.state.Phase = core.ActivationPhasePending
	return core.CreateActivationResult{ActivationID: "act_" + req.ActivationCode}, nil
}

func (e *FakeCryptoEngine) CommitActivation(_ context.Context, keys core.SignatureFactorKeys) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.commitErr != nil {
		return e.commitErr
	}
	if e.state.Phase != core.ActivationPhasePending {
		return &core.EngineError{Code: core.EngineCodeMissingActivation}
	}
	e.state.Phase = core.ActivationPhaseCommitted
	e.commitKeys = &keys
	return nil
}

func (e *FakeCryptoEngine) ComputeSignature(_ context.Context, req core.SignatureRequest, keys core.SignatureFactorKeys) (core.SignatureResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.signErr != nil {
		return core.SignatureResult{}, e.signErr
	}
	if e.state.Phase != core.ActivationPhaseCommitted {
		return core.SignatureResult{}, &core.EngineError{Code: core.EngineCodeMissingActivation}
	}
	e.state.SignatureCount++
	e.lastSignKeys = &keys
	return core.SignatureResult{
		HeaderName:  "X-MFA-Authorization",
		HeaderValue: fmt.Sprintf("sig/%s/%d", req.URIID, e.state.SignatureCount),
	}, nil
}

func (e *FakeCryptoEngine) AddBiometryFactor(_ context.Context, _ core.SignatureFactorKeys, biometryKey []byte) error {
	if len(biometryKey) != core.BiometryKeySize {
		return &core.EngineError{Code: core.EngineCodeBiometryAlreadySet, Message: "bad key size"}
	}
	return nil
}

func (e *FakeCryptoEngine) RemoveBiometryFactor(context.Context) error { return nil }

func (e *FakeCryptoEngine) FetchActivationStatus(context.Context) (core.ActivationStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state := "ACTIVE"
	if e.state.Phase == core.ActivationPhasePending {
		state = "PENDING_COMMIT"
	}
	return core.ActivationStatus{State: state, MaxFailCount: 5, RemainingCount: 5}, nil
}

func (e *FakeCryptoEngine) RemoveActivation(context.Context, core.SignatureFactorKeys) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = fakeEngineState{Phase: core.ActivationPhaseNone}
	return nil
}

func (e *FakeCryptoEngine) ActivationPhase() core.ActivationPhase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Phase
}

func (e *FakeCryptoEngine) PendingProtocolUpgrade() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.PendingUpgrade
}

func (e *FakeCryptoEngine) UpgradeProtocol(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.upgradeCalls++
	if e.upgradeErr != nil {
		return e.upgradeErr
	}
	e.state.PendingUpgrade = false
	return nil
}

func (e *FakeCryptoEngine) SerializeState() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return json.Marshal(e.state)
}

func (e *FakeCryptoEngine) RestoreState(state []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !bytes.HasPrefix(bytes.TrimSpace(state), []byte("{")) {
		return &core.EngineError{Code: "ERR_MALFORMED_STATE"}
	}
	var parsed fakeEngineState
	if err := json.Unmarshal(state, &parsed); err != nil {
		return &core.EngineError{Code: "ERR_MALFORMED_STATE", Cause: err}
	}
	e.state = parsed
	return nil
}

func (e *FakeCryptoEngine) ResetState() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = fakeEngineState{Phase: core.ActivationPhaseNone}
}

var _ core.CryptoEngine = (*FakeCryptoEngine)(nil)
