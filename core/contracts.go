package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

// CredentialProvider is the capability interface the core requires from any
// key-material store. Implementations live outside core (store/memory,
// store/sql, or a platform secure store binding) and must keep
// PossessionKey idempotent under concurrent first creation and the biometry
// operations linearizable with respect to each other.
type CredentialProvider interface {
	// LoadActivationState restores the opaque serialized engine state.
	// Absence is not an error: (nil, nil).
	LoadActivationState(ctx context.Context) ([]byte, error)
	// SaveActivationState persists the opaque state. Saving an empty state
	// is equivalent to RemoveActivationState.
	SaveActivationState(ctx context.Context, state []byte) error
	RemoveActivationState(ctx context.Context) error

	// PossessionKey returns the possession-factor key, generating and durably
	// storing a random key of PossessionKeySize on first call. Subsequent
	// calls must return identical bytes.
	PossessionKey(ctx context.Context) ([]byte, error)

	// HasBiometryKey is a non-blocking existence check; it must never invoke
	// a biometric prompt.
	HasBiometryKey(ctx context.Context) (bool, error)

	// BiometryKey returns the biometry-factor key gated by biometric
	// authentication. Fails with MFA_BIOMETRIC_AUTHENTICATION_FAILED reason
	// notConfigured when no key is stored and notAvailable when the platform
	// cannot evaluate biometrics right now.
	BiometryKey(ctx context.Context, biometricContext BiometricContext) ([]byte, error)

	// SaveBiometryKey stores or overwrites the biometry key under the given
	// protection level.
	SaveBiometryKey(ctx context.Context, key []byte, protection BiometryKeyProtection) error

	// RemoveBiometryKey is idempotent; removing an absent key succeeds.
	RemoveBiometryKey(ctx context.Context) error

	// PurgeAll erases every entry in all stores owned by this provider. Used
	// by the storage lifecycle guard on reinstall detection.
	PurgeAll(ctx context.Context) error
}

// BiometricContext is the live biometric-authentication handle supplied by
// the platform binding. Evaluate may block on prompt UI; callers must stay
// off their main thread.
type BiometricContext interface {
	// CanEvaluate reports whether biometric authentication is currently
	// possible, returning an MFA_BIOMETRIC_AUTHENTICATION_FAILED error with
	// reason notSupported, notAvailable, or notEnrolled otherwise.
	CanEvaluate(ctx context.Context) error
	// Evaluate runs the platform prompt.
	Evaluate(ctx context.Context, reason string) error
}

// CryptoEngine is the external protocol engine boundary. The engine owns all
// signature math, activation-code parsing, and protocol state; this SDK only
// feeds it configuration and resolved factor keys.
type CryptoEngine interface {
	CreateActivation(ctx context.Context, req CreateActivationRequest) (CreateActivationResult, error)
	CommitActivation(ctx context.Context, keys SignatureFactorKeys) error
	ComputeSignature(ctx context.Context, req SignatureRequest, keys SignatureFactorKeys) (SignatureResult, error)

	AddBiometryFactor(ctx context.Context, keys SignatureFactorKeys, biometryKey []byte) error
	RemoveBiometryFactor(ctx context.Context) error

	FetchActivationStatus(ctx context.Context) (ActivationStatus, error)
	RemoveActivation(ctx context.Context, keys SignatureFactorKeys) error

	ActivationPhase() ActivationPhase
	PendingProtocolUpgrade() bool
	UpgradeProtocol(ctx context.Context) error

	SerializeState() ([]byte, error)
	RestoreState(state []byte) error
	ResetState()
}

type CreateActivationRequest struct {
	ActivationCode     string
	ActivationOTP      string
	RecoveryCode       string
	RecoveryPuk        string
	IdentityAttributes map[string]string
	DeviceName         string
}

type CreateActivationResult struct {
	ActivationID          string
	ActivationFingerprint string
	RecoveryCode          string
	RecoveryPuk           string
}

type SignatureRequest struct {
	Method string
	URIID  string
	Body   []byte
}

type SignatureResult struct {
	HeaderName  string
	HeaderValue string
}

// ActivationStatus mirrors the server-side activation record as the engine
// reports it. The full transition table is owned by the engine.
type ActivationStatus struct {
	State          string
	FailCount      int
	MaxFailCount   int
	RemainingCount int
}

// PreferenceStore keeps small non-secret markers in a location whose
// lifetime differs from the secure store, so a reinstall is detectable.
type PreferenceStore interface {
	GetBool(ctx context.Context, key string) (value bool, present bool, err error)
	SetBool(ctx context.Context, key string, value bool) error
}

// SecretProvider seals and opens persisted key material for store
// implementations that hold secrets outside a platform secure store.
type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type LifecycleEventHandler interface {
	Handle(ctx context.Context, event LifecycleEvent) error
}

type LifecycleEventBus interface {
	Publish(ctx context.Context, event LifecycleEvent) error
	Subscribe(handler LifecycleEventHandler)
}

// CredentialProviderFactory builds a provider for a validated configuration
// pair. store/sql exposes one; the facade uses it when no explicit provider
// is injected.
type CredentialProviderFactory interface {
	BuildCredentialProvider(instance InstanceConfig, naming KeychainNaming) (CredentialProvider, error)
}
