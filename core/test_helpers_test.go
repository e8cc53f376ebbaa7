package core

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

type memoryCredentialProvider struct {
	mu sync.Mutex

	activationState []byte
	possessionKey   []byte
	biometryKey     []byte
	biometryLevel   BiometryKeyProtection

	possessionKeyCalls int
	saveBiometryCalls  int
	biometryReadCalls  int
	purgeCalls         int
}

func newMemoryCredentialProvider() *memoryCredentialProvider {
	return &memoryCredentialProvider{}
}

func (p *memoryCredentialProvider) LoadActivationState(context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.activationState == nil {
		return nil, nil
	}
	return append([]byte(nil), p.activationState...), nil
}

func (p *memoryCredentialProvider) SaveActivationState(_ context.Context, state []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(state) == 0 {
		p.activationState = nil
		return nil
	}
	p.activationState = append([]byte(nil), state...)
	return nil
}

func (p *memoryCredentialProvider) RemoveActivationState(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activationState = nil
	return nil
}

func (p *memoryCredentialProvider) PossessionKey(context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.possessionKeyCalls++
	if p.possessionKey == nil {
		key := make([]byte, PossessionKeySize)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, err
		}
		p.possessionKey = key
	}
	return append([]byte(nil), p.possessionKey...), nil
}

func (p *memoryCredentialProvider) HasBiometryKey(context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.biometryKey != nil, nil
}

func (p *memoryCredentialProvider) BiometryKey(ctx context.Context, biometricContext BiometricContext) ([]byte, error) {
	if biometricContext != nil {
		if err := biometricContext.CanEvaluate(ctx); err != nil {
			return nil, err
		}
		if err := biometricContext.Evaluate(ctx, "authenticate"); err != nil {
			return nil, err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.biometryReadCalls++
	if p.biometryKey == nil {
		return nil, NewBiometricFailedError(ReasonBiometryNotConfigured, "test: no biometry key stored")
	}
	return append([]byte(nil), p.biometryKey...), nil
}

func (p *memoryCredentialProvider) SaveBiometryKey(_ context.Context, key []byte, protection BiometryKeyProtection) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saveBiometryCalls++
	p.biometryKey = append([]byte(nil), key...)
	p.biometryLevel = protection
	return nil
}

func (p *memoryCredentialProvider) RemoveBiometryKey(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.biometryKey = nil
	return nil
}

func (p *memoryCredentialProvider) PurgeAll(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.purgeCalls++
	p.activationState = nil
	p.possessionKey = nil
	p.biometryKey = nil
	return nil
}

type approvingBiometricContext struct{}

func (approvingBiometricContext) CanEvaluate(context.Context) error { return nil }

func (approvingBiometricContext) Evaluate(context.Context, string) error { return nil }

type fakeEngineState struct {
	Phase          ActivationPhase `json:"phase"`
	PendingUpgrade bool            `json:"pending_upgrade"`
	SignatureCount int             `json:"signature_count"`
}

type fakeCryptoEngine struct {
	mu sync.Mutex

	state          fakeEngineState
	commitKeys     *SignatureFactorKeys
	lastSignKeys   *SignatureFactorKeys
	failCommitWith error
	failSignWith   error
	upgradeErr     error
	upgradeCalls   int
}

func newFakeCryptoEngine() *fakeCryptoEngine {
	return &fakeCryptoEngine{state: fakeEngineState{Phase: ActivationPhaseNone}}
}

func (e *fakeCryptoEngine) CreateActivation(_ context.Context, req CreateActivationRequest) (CreateActivationResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Phase != ActivationPhaseNone {
		return CreateActivationResult{}, &EngineError{Code: EngineCodeActivationPresent}
	}
	e.state.Phase = ActivationPhasePending
	return CreateActivationResult{ActivationID: "act_" + req.ActivationCode}, nil
}

func (e *fakeCryptoEngine) CommitActivation(_ context.Context, keys SignatureFactorKeys) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failCommitWith != nil {
		return e.failCommitWith
	}
	if e.state.Phase != ActivationPhasePending {
		return &EngineError{Code: EngineCodeMissingActivation}
	}
	e.state.Phase = ActivationPhaseCommitted
	e.commitKeys = &keys
	return nil
}

func (e *fakeCryptoEngine) ComputeSignature(_ context.Context, req SignatureRequest, keys SignatureFactorKeys) (SignatureResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failSignWith != nil {
		return SignatureResult{}, e.failSignWith
	}
	if e.state.Phase != ActivationPhaseCommitted {
		return SignatureResult{}, &EngineError{Code: EngineCodeMissingActivation}
	}
	e.state.SignatureCount++
	e.lastSignKeys = &keys
	return SignatureResult{
		HeaderName:  "X-MFA-Authorization",
		HeaderValue: fmt.Sprintf("sig/%s/%d", req.URIID, e.state.SignatureCount),
	}, nil
}

func (e *fakeCryptoEngine) AddBiometryFactor(_ context.Context, _ SignatureFactorKeys, biometryKey []byte) error {
	if len(biometryKey) != BiometryKeySize {
		return &EngineError{Code: EngineCodeBiometryAlreadySet, Message: "bad key size"}
	}
	return nil
}

func (e *fakeCryptoEngine) RemoveBiometryFactor(context.Context) error { return nil }

func (e *fakeCryptoEngine) FetchActivationStatus(context.Context) (ActivationStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state := "ACTIVE"
	if e.state.Phase == ActivationPhasePending {
		state = "PENDING_COMMIT"
	}
	return ActivationStatus{State: state, MaxFailCount: 5, RemainingCount: 5}, nil
}

func (e *fakeCryptoEngine) RemoveActivation(context.Context, SignatureFactorKeys) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = fakeEngineState{Phase: ActivationPhaseNone}
	return nil
}

func (e *fakeCryptoEngine) ActivationPhase() ActivationPhase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Phase
}

func (e *fakeCryptoEngine) PendingProtocolUpgrade() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.PendingUpgrade
}

func (e *fakeCryptoEngine) UpgradeProtocol(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.upgradeCalls++
	if e.upgradeErr != nil {
		return e.upgradeErr
	}
	e.state.PendingUpgrade = false
	return nil
}

func (e *fakeCryptoEngine) SerializeState() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return json.Marshal(e.state)
}

func (e *fakeCryptoEngine) RestoreState(state []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !bytes.HasPrefix(bytes.TrimSpace(state), []byte("{")) {
		return &EngineError{Code: "ERR_MALFORMED_STATE"}
	}
	var parsed fakeEngineState
	if err := json.Unmarshal(state, &parsed); err != nil {
		return &EngineError{Code: "ERR_MALFORMED_STATE", Cause: err}
	}
	e.state = parsed
	return nil
}

func (e *fakeCryptoEngine) ResetState() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = fakeEngineState{Phase: ActivationPhaseNone}
}

var (
	_ CredentialProvider = (*memoryCredentialProvider)(nil)
	_ CryptoEngine       = (*fakeCryptoEngine)(nil)
)

func newTestService(t interface {
	Helper()
	Fatalf(format string, args ...any)
}, options ...Option) (*Service, *memoryCredentialProvider, *fakeCryptoEngine) {
	t.Helper()
	instance := mustTestInstanceConfig(t)
	provider := newMemoryCredentialProvider()
	engine := newFakeCryptoEngine()
	base := []Option{
		WithInstanceConfig(instance),
		WithCredentialProvider(provider),
		WithCryptoEngine(engine),
	}
	svc, err := NewService(Config{}, append(base, options...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, provider, engine
}

func mustTestInstanceConfig(t interface {
	Helper()
	Fatalf(format string, args ...any)
}) InstanceConfig {
	t.Helper()
	instance, err := NewInstanceConfig(
		"test-instance",
		testBase64Key(ApplicationKeySize),
		testBase64Key(ApplicationSecretSize),
		testBase64Key(MinMasterServerPublicKeySize),
	)
	if err != nil {
		t.Fatalf("instance config: %v", err)
	}
	return instance
}

func testBase64Key(size int) string {
	raw := make([]byte, size)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	return base64.StdEncoding.EncodeToString(raw)
}
