package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service is the host-application-facing facade. It owns the one credential
// provider and crypto engine pair for an SDK instance, runs the storage
// lifecycle guard before first use, and turns Authentication selectors into
// engine calls through the factor resolver.
//
// The facade is synchronous and safe for concurrent use; engine access is
// serialized. Biometric-gated reads may block on platform prompt UI, so
// callers must stay off their main thread.
type Service struct {
	config          Config
	instance        InstanceConfig
	naming          KeychainNaming
	biometryPolicy  BiometryPolicy
	resolver        FactorResolver
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	provider        CredentialProvider
	engine          CryptoEngine
	guard           *StorageLifecycleGuard
	preferenceStore PreferenceStore
	secretProvider  SecretProvider
	eventBus        LifecycleEventBus
	acceptedFactors AcceptedFactors

	mu sync.Mutex
}

type ServiceDependencies struct {
	Logger             Logger
	LoggerProvider     LoggerProvider
	MetricsRecorder    MetricsRecorder
	ErrorFactory       ErrorFactory
	ErrorMapper        ErrorMapper
	ConfigProvider     ConfigProvider
	OptionsResolver    OptionsResolver
	CredentialProvider CredentialProvider
	CryptoEngine       CryptoEngine
	Guard              *StorageLifecycleGuard
	PreferenceStore    PreferenceStore
	SecretProvider     SecretProvider
	EventBus           LifecycleEventBus
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("mfa", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("mfa"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.eventBus == nil {
		builder.eventBus = NewMemoryEventBus()
	}
	if builder.preferenceStore == nil {
		builder.preferenceStore = NewMemoryPreferenceStore()
	}

	if !builder.hasInstance {
		return nil, NewInvalidConfigurationError(ReasonInvalidInstanceConfiguration,
			"core: instance configuration is required, use WithInstanceConfig")
	}
	if builder.engine == nil {
		return nil, NewInvalidConfigurationError(ReasonInvalidInstanceConfiguration,
			"core: crypto engine is required, use WithCryptoEngine")
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	if _, err := finalConfig.HTTPClientConfig(); err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	credentialProvider := builder.credentialProvider
	if credentialProvider == nil && builder.providerFactory != nil {
		credentialProvider, err = builder.providerFactory.BuildCredentialProvider(builder.instance, builder.naming)
		if err != nil {
			return nil, mapBuildError(builder.errorMapper, err)
		}
	}
	if credentialProvider == nil {
		return nil, NewInvalidConfigurationError(ReasonInvalidKeychainConfiguration,
			"core: credential provider is required, use WithCredentialProvider or WithCredentialProviderFactory")
	}

	guard := builder.guard
	if guard == nil {
		guard, err = NewStorageLifecycleGuard(builder.preferenceStore)
		if err != nil {
			return nil, mapBuildError(builder.errorMapper, err)
		}
	}

	s := &Service{
		config:          finalConfig,
		instance:        builder.instance,
		naming:          builder.naming,
		biometryPolicy:  builder.biometryPolicy,
		resolver:        FactorResolver{BiometryPolicy: builder.biometryPolicy},
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorFactory:    builder.errorFactory,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		provider:        credentialProvider,
		engine:          builder.engine,
		guard:           guard,
		preferenceStore: builder.preferenceStore,
		secretProvider:  builder.secretProvider,
		eventBus:        builder.eventBus,
		acceptedFactors: builder.acceptedFactors,
	}

	if err := s.initializeStorage(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) initializeStorage(ctx context.Context) error {
	purged, err := s.guard.EnsureStorage(ctx, s.provider, s.naming)
	if err != nil {
		return s.mapError(err)
	}
	if purged {
		s.publishEvent(ctx, EventStoragePurged, nil)
	}

	state, err := s.provider.LoadActivationState(ctx)
	if err != nil {
		return s.mapError(err)
	}
	if len(state) == 0 {
		return nil
	}
	if err := s.engine.RestoreState(state); err != nil {
		// Stale or corrupted state must not brick the SDK: start clean and
		// let the host re-activate.
		s.logError(ctx, "restoring persisted activation state failed, starting clean", map[string]any{
			"instance_id": s.instance.InstanceID,
			"error":       err.Error(),
		})
		s.engine.ResetState()
		if removeErr := s.provider.RemoveActivationState(ctx); removeErr != nil {
			s.logError(ctx, "removing stale activation state failed", map[string]any{
				"instance_id": s.instance.InstanceID,
				"error":       removeErr.Error(),
			})
		}
	}
	return nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) InstanceConfig() InstanceConfig {
	if s == nil {
		return InstanceConfig{}
	}
	return s.instance
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:             s.logger,
		LoggerProvider:     s.loggerProvider,
		MetricsRecorder:    s.metricsRecorder,
		ErrorFactory:       s.errorFactory,
		ErrorMapper:        s.errorMapper,
		ConfigProvider:     s.configProvider,
		OptionsResolver:    s.optionsResolver,
		CredentialProvider: s.provider,
		CryptoEngine:       s.engine,
		Guard:              s.guard,
		PreferenceStore:    s.preferenceStore,
		SecretProvider:     s.secretProvider,
		EventBus:           s.eventBus,
	}
}

// ActivationPhase reports the engine-side lifecycle phase.
func (s *Service) ActivationPhase() ActivationPhase {
	if s == nil {
		return ActivationPhaseNone
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.ActivationPhase()
}

func (s *Service) HasValidActivation() bool {
	return s.ActivationPhase() == ActivationPhaseCommitted
}

// CreateActivation starts a new activation against the server through the
// engine and persists the resulting pending state.
func (s *Service) CreateActivation(ctx context.Context, req CreateActivationRequest) (result CreateActivationResult, err error) {
	fields := map[string]any{"instance_id": s.instance.InstanceID}
	defer s.observeOperation(ctx, time.Now().UTC(), "create_activation", &err, fields)

	s.mu.Lock()
	defer s.mu.Unlock()

	if phase := s.engine.ActivationPhase(); phase != ActivationPhaseNone {
		err = s.mapError(NewInvalidActivationStateError(ReasonActivationPresent,
			fmt.Sprintf("core: activation already exists in phase %q", phase)))
		return CreateActivationResult{}, err
	}
	if err = validateCreateActivationRequest(req); err != nil {
		err = s.mapError(err)
		return CreateActivationResult{}, err
	}

	result, err = s.engine.CreateActivation(ctx, req)
	if err != nil {
		err = s.mapError(err)
		return CreateActivationResult{}, err
	}
	if err = s.persistStateLocked(ctx); err != nil {
		return CreateActivationResult{}, err
	}
	s.publishEvent(ctx, EventActivationCreated, map[string]any{
		"activation_id": result.ActivationID,
	})
	return result, nil
}

func validateCreateActivationRequest(req CreateActivationRequest) error {
	hasCode := req.ActivationCode != ""
	hasRecovery := req.RecoveryCode != "" || req.RecoveryPuk != ""
	hasIdentity := len(req.IdentityAttributes) > 0
	if !hasCode && !hasRecovery && !hasIdentity {
		return NewInvalidActivationDataError(ReasonEmptyIdentityAttributes,
			"core: activation needs an activation code, a recovery code, or identity attributes")
	}
	if hasRecovery && (req.RecoveryCode == "" || req.RecoveryPuk == "") {
		reason := ReasonWrongRecoveryCode
		if req.RecoveryCode != "" {
			reason = ReasonWrongRecoveryPuk
		}
		return NewInvalidActivationDataError(reason,
			"core: recovery activation needs both the recovery code and the puk")
	}
	if req.ActivationOTP != "" && !hasCode {
		return NewInvalidActivationDataError(ReasonOTPInWrongActivationType,
			"core: activation otp is only valid together with an activation code")
	}
	return nil
}

// CommitActivation finalizes the pending activation. This is the only point
// at which new factor keys may be created, so the selector must be
// commit-class.
func (s *Service) CommitActivation(ctx context.Context, auth Authentication) (err error) {
	fields := map[string]any{
		"instance_id": s.instance.InstanceID,
		"selector":    string(auth.Kind()),
	}
	defer s.observeOperation(ctx, time.Now().UTC(), "commit_activation", &err, fields)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch phase := s.engine.ActivationPhase(); phase {
	case ActivationPhasePending:
	case ActivationPhaseNone:
		err = s.mapError(NewInvalidActivationStateError(ReasonMissingActivation,
			"core: no pending activation to commit"))
		return err
	default:
		err = s.mapError(NewInvalidActivationStateError(ReasonActivationPresent,
			"core: activation is already committed"))
		return err
	}

	keys, err := s.resolver.Resolve(ctx, auth, s.provider, PurposeActivationCommit, nil)
	if err != nil {
		err = s.mapError(err)
		return err
	}
	if err = s.engine.CommitActivation(ctx, keys); err != nil {
		err = s.mapError(err)
		return err
	}
	if err = s.persistStateLocked(ctx); err != nil {
		return err
	}
	s.publishEvent(ctx, EventActivationCommitted, nil)
	if keys.HasBiometry() {
		s.publishEvent(ctx, EventBiometryKeyCreated, nil)
	}
	return nil
}

// SignRequest computes an authentication signature for the request using a
// signing-class selector. A pending protocol upgrade is finished first
// unless the instance disables automatic upgrades, in which case signing is
// refused until the host upgrades explicitly.
func (s *Service) SignRequest(ctx context.Context, req SignatureRequest, auth Authentication) (result SignatureResult, err error) {
	fields := map[string]any{
		"instance_id": s.instance.InstanceID,
		"selector":    string(auth.Kind()),
		"uri_id":      req.URIID,
	}
	defer s.observeOperation(ctx, time.Now().UTC(), "sign_request", &err, fields)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.requireCommittedLocked(); err != nil {
		err = s.mapError(err)
		return SignatureResult{}, err
	}
	if s.engine.PendingProtocolUpgrade() {
		if s.instance.DisableAutomaticProtocolUpgrade {
			err = s.mapError(NewPendingProtocolUpgradeError(
				"core: protocol upgrade pending and automatic upgrades are disabled"))
			return SignatureResult{}, err
		}
		if upgradeErr := s.upgradeProtocolLocked(ctx); upgradeErr != nil {
			err = upgradeErr
			return SignatureResult{}, err
		}
	}

	keys, err := s.resolver.Resolve(ctx, auth, s.provider, PurposeSigning, s.acceptedFactors)
	if err != nil {
		err = s.mapError(err)
		return SignatureResult{}, err
	}
	result, err = s.engine.ComputeSignature(ctx, req, keys)
	if err != nil {
		err = s.mapError(err)
		return SignatureResult{}, err
	}
	// Signature counters advance engine state; persist so a crash does not
	// desynchronize the counter from the server.
	if err = s.persistStateLocked(ctx); err != nil {
		return SignatureResult{}, err
	}
	return result, nil
}

// UpgradeProtocol finishes a pending protocol upgrade explicitly.
func (s *Service) UpgradeProtocol(ctx context.Context) (err error) {
	fields := map[string]any{"instance_id": s.instance.InstanceID}
	defer s.observeOperation(ctx, time.Now().UTC(), "upgrade_protocol", &err, fields)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upgradeProtocolLocked(ctx)
}

func (s *Service) upgradeProtocolLocked(ctx context.Context) error {
	if !s.engine.PendingProtocolUpgrade() {
		return nil
	}
	if err := s.engine.UpgradeProtocol(ctx); err != nil {
		return s.mapError(NewProtocolUpgradeFailedError(err, "core: protocol upgrade failed"))
	}
	return s.persistStateLocked(ctx)
}

// AddBiometryFactor establishes the biometry factor after commit, gated by
// the knowledge factor. The store write happens only after the engine
// accepted the new factor.
func (s *Service) AddBiometryFactor(ctx context.Context, password Password) (err error) {
	fields := map[string]any{"instance_id": s.instance.InstanceID}
	defer s.observeOperation(ctx, time.Now().UTC(), "add_biometry_factor", &err, fields)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.requireCommittedLocked(); err != nil {
		err = s.mapError(err)
		return err
	}
	hasKey, err := s.provider.HasBiometryKey(ctx)
	if err != nil {
		err = s.mapError(err)
		return err
	}
	if hasKey {
		err = s.mapError(NewInvalidActivationStateError(ReasonBiometryAlreadySet,
			"core: biometry factor is already configured"))
		return err
	}

	keys, err := s.resolver.Resolve(ctx, KnowledgeAuthentication(password), s.provider, PurposeSigning, nil)
	if err != nil {
		err = s.mapError(err)
		return err
	}
	biometryKey, err := generateBiometryKey()
	if err != nil {
		err = s.mapError(NewInternalError(err, "core: biometry key generation failed"))
		return err
	}
	if err = s.engine.AddBiometryFactor(ctx, keys, biometryKey); err != nil {
		err = s.mapError(err)
		return err
	}
	if err = s.provider.SaveBiometryKey(ctx, biometryKey, s.biometryPolicy.Protection()); err != nil {
		err = s.mapError(err)
		return err
	}
	if err = s.persistStateLocked(ctx); err != nil {
		return err
	}
	s.publishEvent(ctx, EventBiometryKeyCreated, nil)
	return nil
}

// RemoveBiometryFactor drops the biometry factor. Removing an absent key is
// not an error.
func (s *Service) RemoveBiometryFactor(ctx context.Context) (err error) {
	fields := map[string]any{"instance_id": s.instance.InstanceID}
	defer s.observeOperation(ctx, time.Now().UTC(), "remove_biometry_factor", &err, fields)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.requireCommittedLocked(); err != nil {
		err = s.mapError(err)
		return err
	}
	if err = s.engine.RemoveBiometryFactor(ctx); err != nil {
		err = s.mapError(err)
		return err
	}
	if err = s.provider.RemoveBiometryKey(ctx); err != nil {
		err = s.mapError(err)
		return err
	}
	if err = s.persistStateLocked(ctx); err != nil {
		return err
	}
	s.publishEvent(ctx, EventBiometryKeyRemoved, nil)
	return nil
}

// HasBiometryFactor is a non-blocking existence check.
func (s *Service) HasBiometryFactor(ctx context.Context) (bool, error) {
	if s == nil {
		return false, NewInternalError(nil, "core: service is required")
	}
	hasKey, err := s.provider.HasBiometryKey(ctx)
	if err != nil {
		return false, s.mapError(err)
	}
	return hasKey, nil
}

// FetchActivationStatus asks the engine for the current server-side status.
// The status state machine is owned by the engine.
func (s *Service) FetchActivationStatus(ctx context.Context) (status ActivationStatus, err error) {
	fields := map[string]any{"instance_id": s.instance.InstanceID}
	defer s.observeOperation(ctx, time.Now().UTC(), "fetch_activation_status", &err, fields)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine.ActivationPhase() == ActivationPhaseNone {
		err = s.mapError(NewInvalidActivationStateError(ReasonMissingActivation,
			"core: no activation to fetch status for"))
		return ActivationStatus{}, err
	}
	status, err = s.engine.FetchActivationStatus(ctx)
	if err != nil {
		err = s.mapError(err)
		return ActivationStatus{}, err
	}
	return status, nil
}

// RemoveActivation revokes the activation on the server, then removes it
// locally.
func (s *Service) RemoveActivation(ctx context.Context, auth Authentication) (err error) {
	fields := map[string]any{
		"instance_id": s.instance.InstanceID,
		"selector":    string(auth.Kind()),
	}
	defer s.observeOperation(ctx, time.Now().UTC(), "remove_activation", &err, fields)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.requireCommittedLocked(); err != nil {
		err = s.mapError(err)
		return err
	}
	keys, err := s.resolver.Resolve(ctx, auth, s.provider, PurposeSigning, s.acceptedFactors)
	if err != nil {
		err = s.mapError(err)
		return err
	}
	if err = s.engine.RemoveActivation(ctx, keys); err != nil {
		err = s.mapError(err)
		return err
	}
	s.removeActivationLocalLocked(ctx)
	return nil
}

// RemoveActivationLocal wipes the local activation without contacting the
// server. It is a last-resort fallback path: cleanup failures are logged,
// never propagated.
func (s *Service) RemoveActivationLocal(ctx context.Context) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeActivationLocalLocked(ctx)
}

func (s *Service) removeActivationLocalLocked(ctx context.Context) {
	s.engine.ResetState()
	if err := s.provider.RemoveActivationState(ctx); err != nil {
		s.logError(ctx, "removing local activation state failed", map[string]any{
			"instance_id": s.instance.InstanceID,
			"error":       err.Error(),
		})
	}
	if err := s.provider.RemoveBiometryKey(ctx); err != nil {
		s.logError(ctx, "removing biometry key failed", map[string]any{
			"instance_id": s.instance.InstanceID,
			"error":       err.Error(),
		})
	}
	s.publishEvent(ctx, EventActivationRemoved, nil)
}

func (s *Service) requireCommittedLocked() error {
	switch phase := s.engine.ActivationPhase(); phase {
	case ActivationPhaseCommitted:
		return nil
	case ActivationPhasePending:
		return NewInvalidActivationStateError(ReasonPendingActivation,
			"core: activation is pending, commit it first")
	default:
		return NewInvalidActivationStateError(ReasonMissingActivation,
			"core: no valid activation")
	}
}

func (s *Service) persistStateLocked(ctx context.Context) error {
	state, err := s.engine.SerializeState()
	if err != nil {
		return s.mapError(err)
	}
	if err := s.provider.SaveActivationState(ctx, state); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *Service) publishEvent(ctx context.Context, name string, metadata map[string]any) {
	if s == nil || s.eventBus == nil {
		return
	}
	event := newLifecycleEvent(name, s.instance.InstanceID, metadata)
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logError(ctx, "lifecycle event publish failed", map[string]any{
			"event": name,
			"error": err.Error(),
		})
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
