package core

import (
	"context"
	"sync"
	"testing"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []LifecycleEvent
}

func (r *eventRecorder) Handle(_ context.Context, event LifecycleEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.events))
	for _, event := range r.events {
		names = append(names, event.Name)
	}
	return names
}

func (r *eventRecorder) count(name string) int {
	total := 0
	for _, got := range r.names() {
		if got == name {
			total++
		}
	}
	return total
}

func createAndCommit(t *testing.T, svc *Service) {
	t.Helper()
	if _, err := svc.CreateActivation(context.Background(), CreateActivationRequest{ActivationCode: "CODE-1"}); err != nil {
		t.Fatalf("create activation: %v", err)
	}
	if err := svc.CommitActivation(context.Background(), CommitWithKnowledge(NewPassword("1234"))); err != nil {
		t.Fatalf("commit activation: %v", err)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	instance := mustTestInstanceConfig(t)

	t.Run("instance config required", func(t *testing.T) {
		_, err := NewService(Config{},
			WithCredentialProvider(newMemoryCredentialProvider()),
			WithCryptoEngine(newFakeCryptoEngine()))
		if err == nil {
			t.Fatal("expected error without instance config")
		}
		if !IsKind(err, MFAErrorInvalidConfiguration) {
			t.Fatalf("expected %s, got %v", MFAErrorInvalidConfiguration, err)
		}
	})

	t.Run("crypto engine required", func(t *testing.T) {
		_, err := NewService(Config{},
			WithInstanceConfig(instance),
			WithCredentialProvider(newMemoryCredentialProvider()))
		if err == nil {
			t.Fatal("expected error without crypto engine")
		}
	})

	t.Run("credential provider required", func(t *testing.T) {
		_, err := NewService(Config{},
			WithInstanceConfig(instance),
			WithCryptoEngine(newFakeCryptoEngine()))
		if err == nil {
			t.Fatal("expected error without credential provider")
		}
		if ReasonOf(err) != ReasonInvalidKeychainConfiguration {
			t.Fatalf("expected reason %q, got %q", ReasonInvalidKeychainConfiguration, ReasonOf(err))
		}
	})
}

func TestNewServicePurgesOnFreshInstall(t *testing.T) {
	recorder := &eventRecorder{}
	bus := NewMemoryEventBus()
	bus.Subscribe(recorder)

	svc, provider, _ := newTestService(t, WithEventBus(bus))
	if provider.purgeCalls != 1 {
		t.Fatalf("expected one startup purge, got %d", provider.purgeCalls)
	}
	if recorder.count(EventStoragePurged) != 1 {
		t.Fatalf("expected one purge event, got %v", recorder.names())
	}
	if svc.ActivationPhase() != ActivationPhaseNone {
		t.Fatalf("fresh service must start without an activation, got %q", svc.ActivationPhase())
	}
}

func TestNewServiceRestoresPersistedState(t *testing.T) {
	prefs := NewMemoryPreferenceStore()
	if err := prefs.SetBool(context.Background(), StorageInitializedKey, true); err != nil {
		t.Fatalf("seed marker: %v", err)
	}
	provider := newMemoryCredentialProvider()
	seed := newFakeCryptoEngine()
	seed.state = fakeEngineState{Phase: ActivationPhaseCommitted, SignatureCount: 7}
	state, err := seed.SerializeState()
	if err != nil {
		t.Fatalf("serialize seed state: %v", err)
	}
	if err := provider.SaveActivationState(context.Background(), state); err != nil {
		t.Fatalf("seed provider: %v", err)
	}

	svc, err := NewService(Config{},
		WithInstanceConfig(mustTestInstanceConfig(t)),
		WithCredentialProvider(provider),
		WithCryptoEngine(newFakeCryptoEngine()),
		WithPreferenceStore(prefs),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if !svc.HasValidActivation() {
		t.Fatal("service must restore the committed activation")
	}
	if provider.purgeCalls != 0 {
		t.Fatalf("marker present, expected no purge, got %d", provider.purgeCalls)
	}
}

func TestNewServiceRecoversFromCorruptedState(t *testing.T) {
	prefs := NewMemoryPreferenceStore()
	if err := prefs.SetBool(context.Background(), StorageInitializedKey, true); err != nil {
		t.Fatalf("seed marker: %v", err)
	}
	provider := newMemoryCredentialProvider()
	if err := provider.SaveActivationState(context.Background(), []byte("garbage")); err != nil {
		t.Fatalf("seed provider: %v", err)
	}

	svc, err := NewService(Config{},
		WithInstanceConfig(mustTestInstanceConfig(t)),
		WithCredentialProvider(provider),
		WithCryptoEngine(newFakeCryptoEngine()),
		WithPreferenceStore(prefs),
	)
	if err != nil {
		t.Fatalf("corrupted state must not fail construction, got %v", err)
	}
	if svc.ActivationPhase() != ActivationPhaseNone {
		t.Fatal("service must start clean after a corrupted restore")
	}
	if state, _ := provider.LoadActivationState(context.Background()); state != nil {
		t.Fatal("corrupted state must be removed")
	}
}

func TestCreateActivation(t *testing.T) {
	t.Run("happy path persists pending state", func(t *testing.T) {
		recorder := &eventRecorder{}
		bus := NewMemoryEventBus()
		bus.Subscribe(recorder)
		svc, provider, _ := newTestService(t, WithEventBus(bus))

		result, err := svc.CreateActivation(context.Background(), CreateActivationRequest{ActivationCode: "CODE-1"})
		if err != nil {
			t.Fatalf("create activation: %v", err)
		}
		if result.ActivationID == "" {
			t.Fatal("expected an activation id")
		}
		if svc.ActivationPhase() != ActivationPhasePending {
			t.Fatalf("expected pending phase, got %q", svc.ActivationPhase())
		}
		if state, _ := provider.LoadActivationState(context.Background()); state == nil {
			t.Fatal("pending state must be persisted")
		}
		if recorder.count(EventActivationCreated) != 1 {
			t.Fatalf("expected one created event, got %v", recorder.names())
		}
	})

	t.Run("second activation is refused", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		if _, err := svc.CreateActivation(context.Background(), CreateActivationRequest{ActivationCode: "CODE-1"}); err != nil {
			t.Fatalf("first create: %v", err)
		}
		_, err := svc.CreateActivation(context.Background(), CreateActivationRequest{ActivationCode: "CODE-2"})
		if err == nil {
			t.Fatal("expected refusal while an activation exists")
		}
		if ReasonOf(err) != ReasonActivationPresent {
			t.Fatalf("expected reason %q, got %q", ReasonActivationPresent, ReasonOf(err))
		}
	})

	t.Run("request validation", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		cases := []struct {
			name   string
			req    CreateActivationRequest
			reason Reason
		}{
			{"no inputs at all", CreateActivationRequest{}, ReasonEmptyIdentityAttributes},
			{"recovery code without puk", CreateActivationRequest{RecoveryCode: "R1"}, ReasonWrongRecoveryPuk},
			{"puk without recovery code", CreateActivationRequest{RecoveryPuk: "0001"}, ReasonWrongRecoveryCode},
			{"otp without activation code", CreateActivationRequest{
				ActivationOTP:      "9999",
				IdentityAttributes: map[string]string{"user": "u1"},
			}, ReasonOTPInWrongActivationType},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := svc.CreateActivation(context.Background(), tc.req)
				if err == nil {
					t.Fatal("expected validation error")
				}
				if !IsKind(err, MFAErrorInvalidActivationData) {
					t.Fatalf("expected %s, got %v", MFAErrorInvalidActivationData, err)
				}
				if ReasonOf(err) != tc.reason {
					t.Fatalf("expected reason %q, got %q", tc.reason, ReasonOf(err))
				}
			})
		}
	})

	t.Run("identity attributes alone are enough", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.CreateActivation(context.Background(), CreateActivationRequest{
			IdentityAttributes: map[string]string{"username": "u1"},
		})
		if err != nil {
			t.Fatalf("custom activation should succeed, got %v", err)
		}
	})
}

func TestCommitActivation(t *testing.T) {
	t.Run("requires a pending activation", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		err := svc.CommitActivation(context.Background(), CommitWithKnowledge(NewPassword("1234")))
		if err == nil {
			t.Fatal("expected error without a pending activation")
		}
		if ReasonOf(err) != ReasonMissingActivation {
			t.Fatalf("expected reason %q, got %q", ReasonMissingActivation, ReasonOf(err))
		}
	})

	t.Run("requires a commit-class selector", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		if _, err := svc.CreateActivation(context.Background(), CreateActivationRequest{ActivationCode: "CODE-1"}); err != nil {
			t.Fatalf("create activation: %v", err)
		}
		err := svc.CommitActivation(context.Background(), KnowledgeAuthentication(NewPassword("1234")))
		if err == nil {
			t.Fatal("expected class violation")
		}
		if ReasonOf(err) != ReasonCommitFactorRequired {
			t.Fatalf("expected reason %q, got %q", ReasonCommitFactorRequired, ReasonOf(err))
		}
	})

	t.Run("knowledge commit", func(t *testing.T) {
		recorder := &eventRecorder{}
		bus := NewMemoryEventBus()
		bus.Subscribe(recorder)
		svc, provider, engine := newTestService(t, WithEventBus(bus))
		createAndCommit(t, svc)

		if !svc.HasValidActivation() {
			t.Fatal("expected a committed activation")
		}
		if engine.commitKeys == nil || !engine.commitKeys.HasKnowledge() {
			t.Fatal("engine must receive the knowledge factor")
		}
		if provider.saveBiometryCalls != 0 {
			t.Fatal("knowledge-only commit must not create a biometry key")
		}
		if recorder.count(EventActivationCommitted) != 1 {
			t.Fatalf("expected one committed event, got %v", recorder.names())
		}
		if recorder.count(EventBiometryKeyCreated) != 0 {
			t.Fatal("no biometry event for a knowledge-only commit")
		}
	})

	t.Run("commit with biometry stores one key", func(t *testing.T) {
		recorder := &eventRecorder{}
		bus := NewMemoryEventBus()
		bus.Subscribe(recorder)
		svc, provider, _ := newTestService(t, WithEventBus(bus))
		if _, err := svc.CreateActivation(context.Background(), CreateActivationRequest{ActivationCode: "CODE-1"}); err != nil {
			t.Fatalf("create activation: %v", err)
		}
		if err := svc.CommitActivation(context.Background(),
			CommitWithKnowledgeAndBiometry(NewPassword("1234"))); err != nil {
			t.Fatalf("commit activation: %v", err)
		}
		if provider.saveBiometryCalls != 1 {
			t.Fatalf("expected exactly one biometry save, got %d", provider.saveBiometryCalls)
		}
		if recorder.count(EventBiometryKeyCreated) != 1 {
			t.Fatalf("expected one biometry event, got %v", recorder.names())
		}
	})

	t.Run("second commit is refused", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		createAndCommit(t, svc)
		err := svc.CommitActivation(context.Background(), CommitWithKnowledge(NewPassword("1234")))
		if err == nil {
			t.Fatal("expected refusal of a second commit")
		}
		if ReasonOf(err) != ReasonActivationPresent {
			t.Fatalf("expected reason %q, got %q", ReasonActivationPresent, ReasonOf(err))
		}
	})
}

func TestSignRequest(t *testing.T) {
	request := SignatureRequest{Method: "POST", URIID: "/payment/approve", Body: []byte(`{"amount":10}`)}

	t.Run("requires a committed activation", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.SignRequest(context.Background(), request, PossessionAuthentication())
		if err == nil {
			t.Fatal("expected error without an activation")
		}
		if ReasonOf(err) != ReasonMissingActivation {
			t.Fatalf("expected reason %q, got %q", ReasonMissingActivation, ReasonOf(err))
		}
	})

	t.Run("pending activation cannot sign", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		if _, err := svc.CreateActivation(context.Background(), CreateActivationRequest{ActivationCode: "CODE-1"}); err != nil {
			t.Fatalf("create activation: %v", err)
		}
		_, err := svc.SignRequest(context.Background(), request, PossessionAuthentication())
		if err == nil {
			t.Fatal("expected error with a pending activation")
		}
		if ReasonOf(err) != ReasonPendingActivation {
			t.Fatalf("expected reason %q, got %q", ReasonPendingActivation, ReasonOf(err))
		}
	})

	t.Run("rejects commit-class selectors", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		createAndCommit(t, svc)
		_, err := svc.SignRequest(context.Background(), request, CommitWithKnowledge(NewPassword("1234")))
		if err == nil {
			t.Fatal("expected class violation")
		}
		if ReasonOf(err) != ReasonSigningFactorRequired {
			t.Fatalf("expected reason %q, got %q", ReasonSigningFactorRequired, ReasonOf(err))
		}
	})

	t.Run("possession signature", func(t *testing.T) {
		svc, provider, _ := newTestService(t)
		createAndCommit(t, svc)
		before, _ := provider.LoadActivationState(context.Background())

		result, err := svc.SignRequest(context.Background(), request, PossessionAuthentication())
		if err != nil {
			t.Fatalf("sign request: %v", err)
		}
		if result.HeaderName == "" || result.HeaderValue == "" {
			t.Fatal("expected a signature header")
		}
		after, _ := provider.LoadActivationState(context.Background())
		if string(before) == string(after) {
			t.Fatal("signing must persist the advanced counter state")
		}
	})

	t.Run("accepted factors restriction", func(t *testing.T) {
		svc, _, _ := newTestService(t,
			WithAcceptedSigningFactors(AuthenticationPossessionWithKnowledge))
		createAndCommit(t, svc)
		_, err := svc.SignRequest(context.Background(), request, PossessionAuthentication())
		if err == nil {
			t.Fatal("expected rejection of the possession-only selector")
		}
		if ReasonOf(err) != ReasonRequiredFactorMissing {
			t.Fatalf("expected reason %q, got %q", ReasonRequiredFactorMissing, ReasonOf(err))
		}
		if _, err := svc.SignRequest(context.Background(), request,
			KnowledgeAuthentication(NewPassword("1234"))); err != nil {
			t.Fatalf("accepted selector must sign, got %v", err)
		}
	})

	t.Run("automatic protocol upgrade before signing", func(t *testing.T) {
		svc, _, engine := newTestService(t)
		createAndCommit(t, svc)
		engine.mu.Lock()
		engine.state.PendingUpgrade = true
		engine.mu.Unlock()

		if _, err := svc.SignRequest(context.Background(), request, PossessionAuthentication()); err != nil {
			t.Fatalf("sign with pending upgrade: %v", err)
		}
		if engine.upgradeCalls != 1 {
			t.Fatalf("expected one automatic upgrade, got %d", engine.upgradeCalls)
		}
		if engine.PendingProtocolUpgrade() {
			t.Fatal("upgrade must be finished before signing")
		}
	})

	t.Run("disabled automatic upgrade refuses to sign", func(t *testing.T) {
		instance, err := NewInstanceConfig(
			"test-instance",
			testBase64Key(ApplicationKeySize),
			testBase64Key(ApplicationSecretSize),
			testBase64Key(MinMasterServerPublicKeySize),
			WithDisableAutomaticProtocolUpgrade(),
		)
		if err != nil {
			t.Fatalf("instance config: %v", err)
		}
		svc, _, engine := newTestService(t, WithInstanceConfig(instance))
		createAndCommit(t, svc)
		engine.mu.Lock()
		engine.state.PendingUpgrade = true
		engine.mu.Unlock()

		_, err = svc.SignRequest(context.Background(), request, PossessionAuthentication())
		if err == nil {
			t.Fatal("expected refusal while an upgrade is pending")
		}
		if !IsKind(err, MFAErrorPendingProtocolUpgrade) {
			t.Fatalf("expected %s, got %v", MFAErrorPendingProtocolUpgrade, err)
		}
		if engine.upgradeCalls != 0 {
			t.Fatal("no automatic upgrade may run when disabled")
		}

		if err := svc.UpgradeProtocol(context.Background()); err != nil {
			t.Fatalf("explicit upgrade: %v", err)
		}
		if _, err := svc.SignRequest(context.Background(), request, PossessionAuthentication()); err != nil {
			t.Fatalf("sign after explicit upgrade: %v", err)
		}
	})
}

func TestUpgradeProtocol(t *testing.T) {
	t.Run("no-op when nothing is pending", func(t *testing.T) {
		svc, _, engine := newTestService(t)
		if err := svc.UpgradeProtocol(context.Background()); err != nil {
			t.Fatalf("upgrade protocol: %v", err)
		}
		if engine.upgradeCalls != 0 {
			t.Fatal("no upgrade call expected when nothing is pending")
		}
	})

	t.Run("failure maps to the upgrade kind", func(t *testing.T) {
		svc, _, engine := newTestService(t)
		createAndCommit(t, svc)
		engine.mu.Lock()
		engine.state.PendingUpgrade = true
		engine.upgradeErr = &EngineError{Code: "ERR_NETWORK"}
		engine.mu.Unlock()

		err := svc.UpgradeProtocol(context.Background())
		if err == nil {
			t.Fatal("expected upgrade failure")
		}
		if !IsKind(err, MFAErrorProtocolUpgradeFailed) {
			t.Fatalf("expected %s, got %v", MFAErrorProtocolUpgradeFailed, err)
		}
	})
}

func TestBiometryFactorLifecycle(t *testing.T) {
	t.Run("requires a committed activation", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		if err := svc.AddBiometryFactor(context.Background(), NewPassword("1234")); err == nil {
			t.Fatal("expected error without an activation")
		}
	})

	t.Run("add then remove", func(t *testing.T) {
		recorder := &eventRecorder{}
		bus := NewMemoryEventBus()
		bus.Subscribe(recorder)
		svc, provider, _ := newTestService(t, WithEventBus(bus))
		createAndCommit(t, svc)

		if err := svc.AddBiometryFactor(context.Background(), NewPassword("1234")); err != nil {
			t.Fatalf("add biometry factor: %v", err)
		}
		if provider.saveBiometryCalls != 1 {
			t.Fatalf("expected one biometry save, got %d", provider.saveBiometryCalls)
		}
		has, err := svc.HasBiometryFactor(context.Background())
		if err != nil {
			t.Fatalf("has biometry factor: %v", err)
		}
		if !has {
			t.Fatal("expected an established biometry factor")
		}
		if recorder.count(EventBiometryKeyCreated) != 1 {
			t.Fatalf("expected one created event, got %v", recorder.names())
		}

		if err := svc.RemoveBiometryFactor(context.Background()); err != nil {
			t.Fatalf("remove biometry factor: %v", err)
		}
		has, err = svc.HasBiometryFactor(context.Background())
		if err != nil {
			t.Fatalf("has biometry factor: %v", err)
		}
		if has {
			t.Fatal("biometry factor must be gone")
		}
		if recorder.count(EventBiometryKeyRemoved) != 1 {
			t.Fatalf("expected one removed event, got %v", recorder.names())
		}
	})

	t.Run("adding twice is refused", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		createAndCommit(t, svc)
		if err := svc.AddBiometryFactor(context.Background(), NewPassword("1234")); err != nil {
			t.Fatalf("first add: %v", err)
		}
		err := svc.AddBiometryFactor(context.Background(), NewPassword("1234"))
		if err == nil {
			t.Fatal("expected refusal of a second biometry factor")
		}
		if ReasonOf(err) != ReasonBiometryAlreadySet {
			t.Fatalf("expected reason %q, got %q", ReasonBiometryAlreadySet, ReasonOf(err))
		}
	})

	t.Run("short password is rejected before any store write", func(t *testing.T) {
		svc, provider, _ := newTestService(t)
		createAndCommit(t, svc)
		err := svc.AddBiometryFactor(context.Background(), NewPassword("abc"))
		if err == nil {
			t.Fatal("expected password validation error")
		}
		if ReasonOf(err) != ReasonPasswordTooShort {
			t.Fatalf("expected reason %q, got %q", ReasonPasswordTooShort, ReasonOf(err))
		}
		if provider.saveBiometryCalls != 0 {
			t.Fatal("no biometry key may be stored on validation failure")
		}
	})
}

func TestFetchActivationStatus(t *testing.T) {
	t.Run("requires an activation", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.FetchActivationStatus(context.Background())
		if err == nil {
			t.Fatal("expected error without an activation")
		}
		if ReasonOf(err) != ReasonMissingActivation {
			t.Fatalf("expected reason %q, got %q", ReasonMissingActivation, ReasonOf(err))
		}
	})

	t.Run("reports the engine status", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		if _, err := svc.CreateActivation(context.Background(), CreateActivationRequest{ActivationCode: "CODE-1"}); err != nil {
			t.Fatalf("create activation: %v", err)
		}
		status, err := svc.FetchActivationStatus(context.Background())
		if err != nil {
			t.Fatalf("fetch status: %v", err)
		}
		if status.State != "PENDING_COMMIT" {
			t.Fatalf("unexpected status %q", status.State)
		}
	})
}

func TestRemoveActivation(t *testing.T) {
	t.Run("server removal wipes local state", func(t *testing.T) {
		recorder := &eventRecorder{}
		bus := NewMemoryEventBus()
		bus.Subscribe(recorder)
		svc, provider, _ := newTestService(t, WithEventBus(bus))
		createAndCommit(t, svc)
		if err := svc.AddBiometryFactor(context.Background(), NewPassword("1234")); err != nil {
			t.Fatalf("add biometry factor: %v", err)
		}

		if err := svc.RemoveActivation(context.Background(),
			KnowledgeAuthentication(NewPassword("1234"))); err != nil {
			t.Fatalf("remove activation: %v", err)
		}
		if svc.ActivationPhase() != ActivationPhaseNone {
			t.Fatalf("expected no activation, got %q", svc.ActivationPhase())
		}
		if state, _ := provider.LoadActivationState(context.Background()); state != nil {
			t.Fatal("activation state must be removed")
		}
		if has, _ := provider.HasBiometryKey(context.Background()); has {
			t.Fatal("biometry key must be removed with the activation")
		}
		if recorder.count(EventActivationRemoved) != 1 {
			t.Fatalf("expected one removed event, got %v", recorder.names())
		}
	})

	t.Run("requires a committed activation", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		err := svc.RemoveActivation(context.Background(), PossessionAuthentication())
		if err == nil {
			t.Fatal("expected error without an activation")
		}
	})

	t.Run("local removal never fails", func(t *testing.T) {
		svc, provider, _ := newTestService(t)
		createAndCommit(t, svc)
		svc.RemoveActivationLocal(context.Background())
		if svc.ActivationPhase() != ActivationPhaseNone {
			t.Fatal("local removal must reset the engine")
		}
		if state, _ := provider.LoadActivationState(context.Background()); state != nil {
			t.Fatal("local removal must drop the persisted state")
		}
	})
}

func TestServiceAccessors(t *testing.T) {
	svc, provider, engine := newTestService(t)
	if svc.Config().ServiceName != "mfa" {
		t.Fatalf("unexpected service name %q", svc.Config().ServiceName)
	}
	if svc.InstanceConfig().InstanceID != "test-instance" {
		t.Fatalf("unexpected instance id %q", svc.InstanceConfig().InstanceID)
	}
	deps := svc.Dependencies()
	if deps.CredentialProvider != CredentialProvider(provider) {
		t.Fatal("dependencies must expose the injected provider")
	}
	if deps.CryptoEngine != CryptoEngine(engine) {
		t.Fatal("dependencies must expose the injected engine")
	}
	if deps.Guard == nil || !deps.Guard.Decided() {
		t.Fatal("the storage guard must be decided after construction")
	}
}
