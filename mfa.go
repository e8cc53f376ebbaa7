// Package mfa re-exports the core facade so hosts depend on one import path.
// The storage backends live under store/, the crypto engine is injected by
// the host, and command/queue integrations live under command/ and adapters/.
package mfa

import "github.com/goliatone/go-mfa/core"

type Config = core.Config

type HTTPConfig = core.HTTPConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type InstanceConfig = core.InstanceConfig
type InstanceConfigOption = core.InstanceConfigOption
type KeychainNaming = core.KeychainNaming
type KeychainNamingOption = core.KeychainNamingOption
type BiometryPolicy = core.BiometryPolicy

type Password = core.Password
type Authentication = core.Authentication
type AuthenticationKind = core.AuthenticationKind
type AuthenticationOption = core.AuthenticationOption
type FactorClass = core.FactorClass
type AcceptedFactors = core.AcceptedFactors
type ActivationPhase = core.ActivationPhase

type CreateActivationRequest = core.CreateActivationRequest
type CreateActivationResult = core.CreateActivationResult
type SignatureRequest = core.SignatureRequest
type SignatureResult = core.SignatureResult
type ActivationStatus = core.ActivationStatus

type CredentialProvider = core.CredentialProvider
type CredentialProviderFactory = core.CredentialProviderFactory
type CryptoEngine = core.CryptoEngine
type BiometricContext = core.BiometricContext
type PreferenceStore = core.PreferenceStore
type SecretProvider = core.SecretProvider
type StorageLifecycleGuard = core.StorageLifecycleGuard
type MetricsRecorder = core.MetricsRecorder

type LifecycleEvent = core.LifecycleEvent
type LifecycleEventBus = core.LifecycleEventBus
type LifecycleEventHandler = core.LifecycleEventHandler

var (
	NewInstanceConfig     = core.NewInstanceConfig
	NewKeychainNaming     = core.NewKeychainNaming
	DefaultKeychainNaming = core.DefaultKeychainNaming

	NewPassword       = core.NewPassword
	PasswordFromBytes = core.PasswordFromBytes

	PossessionAuthentication       = core.PossessionAuthentication
	KnowledgeAuthentication        = core.KnowledgeAuthentication
	BiometryAuthentication         = core.BiometryAuthentication
	BiometryAuthenticationWithKey  = core.BiometryAuthenticationWithKey
	CommitWithKnowledge            = core.CommitWithKnowledge
	CommitWithKnowledgeAndBiometry = core.CommitWithKnowledgeAndBiometry

	WithInstanceConfig            = core.WithInstanceConfig
	WithKeychainNaming            = core.WithKeychainNaming
	WithBiometryPolicy            = core.WithBiometryPolicy
	WithLogger                    = core.WithLogger
	WithLoggerProvider            = core.WithLoggerProvider
	WithMetricsRecorder           = core.WithMetricsRecorder
	WithErrorFactory              = core.WithErrorFactory
	WithErrorMapper               = core.WithErrorMapper
	WithConfigProvider            = core.WithConfigProvider
	WithOptionsResolver           = core.WithOptionsResolver
	WithCredentialProvider        = core.WithCredentialProvider
	WithCredentialProviderFactory = core.WithCredentialProviderFactory
	WithCryptoEngine              = core.WithCryptoEngine
	WithStorageLifecycleGuard     = core.WithStorageLifecycleGuard
	WithPreferenceStore           = core.WithPreferenceStore
	WithSecretProvider            = core.WithSecretProvider
	WithEventBus                  = core.WithEventBus
	WithAcceptedSigningFactors    = core.WithAcceptedSigningFactors
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
