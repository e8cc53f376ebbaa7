package core

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Key material sizes enforced at configuration time. The external engine
// expects exactly these shapes, so validation fails fast instead of letting a
// malformed key surface as a signature error later.
const (
	ApplicationKeySize           = 16
	ApplicationSecretSize        = 16
	MinMasterServerPublicKeySize = 33
	ExternalEncryptionKeySize    = 16
	PossessionKeySize            = 16
	BiometryKeySize              = 16

	MinPasswordLength = 4

	MinRequestTimeout     = 1 * time.Second
	DefaultRequestTimeout = 20 * time.Second
)

// InstanceConfig identifies one SDK instance. Constructed only through
// NewInstanceConfig; an invalid combination never yields a value.
type InstanceConfig struct {
	InstanceID                      string
	ApplicationKey                  []byte
	ApplicationSecret               []byte
	MasterServerPublicKey           []byte
	ExternalEncryptionKey           []byte
	DisableAutomaticProtocolUpgrade bool
}

type InstanceConfigOption func(*InstanceConfig) error

// WithExternalEncryptionKey supplies the optional additional encryption key
// applied by the engine on top of the possession factor.
func WithExternalEncryptionKey(keyB64 string) InstanceConfigOption {
	return func(cfg *InstanceConfig) error {
		key, err := decodeExactKey(keyB64, ExternalEncryptionKeySize)
		if err != nil {
			return NewInvalidConfigurationError(ReasonInvalidInstanceConfiguration,
				fmt.Sprintf("core: external encryption key must be base64 of exactly %d bytes", ExternalEncryptionKeySize))
		}
		cfg.ExternalEncryptionKey = key
		return nil
	}
}

func WithDisableAutomaticProtocolUpgrade() InstanceConfigOption {
	return func(cfg *InstanceConfig) error {
		cfg.DisableAutomaticProtocolUpgrade = true
		return nil
	}
}

// NewInstanceConfig validates every field atomically. The instance id keys
// the serialized activation state in the status store, so it must be stable
// across launches.
func NewInstanceConfig(
	instanceID string,
	applicationKeyB64 string,
	applicationSecretB64 string,
	masterServerPublicKeyB64 string,
	opts ...InstanceConfigOption,
) (InstanceConfig, error) {
	if strings.TrimSpace(instanceID) == "" {
		return InstanceConfig{}, NewInvalidConfigurationError(ReasonInvalidInstanceConfiguration,
			"core: instance id is required")
	}
	appKey, err := decodeExactKey(applicationKeyB64, ApplicationKeySize)
	if err != nil {
		return InstanceConfig{}, NewInvalidConfigurationError(ReasonInvalidInstanceConfiguration,
			fmt.Sprintf("core: application key must be base64 of exactly %d bytes", ApplicationKeySize))
	}
	appSecret, err := decodeExactKey(applicationSecretB64, ApplicationSecretSize)
	if err != nil {
		return InstanceConfig{}, NewInvalidConfigurationError(ReasonInvalidInstanceConfiguration,
			fmt.Sprintf("core: application secret must be base64 of exactly %d bytes", ApplicationSecretSize))
	}
	masterKey, err := decodeMinKey(masterServerPublicKeyB64, MinMasterServerPublicKeySize)
	if err != nil {
		return InstanceConfig{}, NewInvalidConfigurationError(ReasonInvalidInstanceConfiguration,
			fmt.Sprintf("core: master server public key must be base64 of at least %d bytes", MinMasterServerPublicKeySize))
	}

	cfg := InstanceConfig{
		InstanceID:            strings.TrimSpace(instanceID),
		ApplicationKey:        appKey,
		ApplicationSecret:     appSecret,
		MasterServerPublicKey: masterKey,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return InstanceConfig{}, err
		}
	}
	return cfg, nil
}

func decodeExactKey(value string, size int) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return nil, err
	}
	if len(decoded) != size {
		return nil, fmt.Errorf("core: expected %d bytes, got %d", size, len(decoded))
	}
	return decoded, nil
}

func decodeMinKey(value string, minSize int) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return nil, err
	}
	if len(decoded) < minSize {
		return nil, fmt.Errorf("core: expected at least %d bytes, got %d", minSize, len(decoded))
	}
	return decoded, nil
}

// Default logical store names. Hosts override them through NewKeychainNaming
// when several products share one secure store.
const (
	DefaultStatusStoreName     = "mfa.statusStore"
	DefaultPossessionStoreName = "mfa.possessionStore"
	DefaultBiometryStoreName   = "mfa.biometryStore"
	DefaultTokenStoreName      = "mfa.tokenStore"

	// PossessionKeyName is the single cross-instance entry key for the shared
	// possession secret.
	PossessionKeyName = "mfa.possessionKey"

	// DefaultPreferenceStoreName keys the storage-initialized marker kept
	// outside the secure store.
	DefaultPreferenceStoreName = "mfa.preferences"
)

// KeychainNaming names the four logically distinct secret stores. The four
// store names must be pairwise distinct; two stores sharing a name would let
// one instance's purge destroy another's keys.
type KeychainNaming struct {
	StatusStoreName     string
	PossessionStoreName string
	BiometryStoreName   string
	TokenStoreName      string
	AccessGroupName     string
	PreferenceStoreName string
	BiometryKeyName     string
}

type KeychainNamingOption func(*KeychainNaming) error

// WithAccessGroup shares the stores across applications in one access group.
func WithAccessGroup(name string) KeychainNamingOption {
	return func(naming *KeychainNaming) error {
		if strings.TrimSpace(name) == "" {
			return NewInvalidConfigurationError(ReasonInvalidKeychainConfiguration,
				"core: access group name must not be empty when provided")
		}
		naming.AccessGroupName = strings.TrimSpace(name)
		return nil
	}
}

func WithPreferenceStoreName(name string) KeychainNamingOption {
	return func(naming *KeychainNaming) error {
		if strings.TrimSpace(name) == "" {
			return NewInvalidConfigurationError(ReasonInvalidKeychainConfiguration,
				"core: preference store name must not be empty when provided")
		}
		naming.PreferenceStoreName = strings.TrimSpace(name)
		return nil
	}
}

// WithBiometryKeyName overrides the per-instance lookup key for the biometry
// factor key inside the biometry store.
func WithBiometryKeyName(name string) KeychainNamingOption {
	return func(naming *KeychainNaming) error {
		if strings.TrimSpace(name) == "" {
			return NewInvalidConfigurationError(ReasonInvalidKeychainConfiguration,
				"core: biometry key name must not be empty when provided")
		}
		naming.BiometryKeyName = strings.TrimSpace(name)
		return nil
	}
}

func NewKeychainNaming(
	statusStoreName string,
	possessionStoreName string,
	biometryStoreName string,
	tokenStoreName string,
	opts ...KeychainNamingOption,
) (KeychainNaming, error) {
	names := []struct {
		label string
		value string
	}{
		{"status", strings.TrimSpace(statusStoreName)},
		{"possession", strings.TrimSpace(possessionStoreName)},
		{"biometry", strings.TrimSpace(biometryStoreName)},
		{"token", strings.TrimSpace(tokenStoreName)},
	}
	for _, name := range names {
		if name.value == "" {
			return KeychainNaming{}, NewInvalidConfigurationError(ReasonInvalidKeychainConfiguration,
				fmt.Sprintf("core: %s store name is required", name.label))
		}
	}
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if names[i].value == names[j].value {
				return KeychainNaming{}, NewInvalidConfigurationError(ReasonInvalidKeychainConfiguration,
					fmt.Sprintf("core: %s and %s store names must be distinct, both are %q",
						names[i].label, names[j].label, names[i].value))
			}
		}
	}

	naming := KeychainNaming{
		StatusStoreName:     names[0].value,
		PossessionStoreName: names[1].value,
		BiometryStoreName:   names[2].value,
		TokenStoreName:      names[3].value,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&naming); err != nil {
			return KeychainNaming{}, err
		}
	}
	return naming, nil
}

// DefaultKeychainNaming returns the canonical store naming.
func DefaultKeychainNaming() KeychainNaming {
	naming, err := NewKeychainNaming(
		DefaultStatusStoreName,
		DefaultPossessionStoreName,
		DefaultBiometryStoreName,
		DefaultTokenStoreName,
	)
	if err != nil {
		panic(err)
	}
	return naming
}

// BiometryKeyProtection selects how the stored biometry key is bound to the
// platform biometric state. The three levels are mutually exclusive.
type BiometryKeyProtection string

const (
	BiometryProtectionCurrentEnrollment       BiometryKeyProtection = "current_enrollment"
	BiometryProtectionAnyEnrollment           BiometryKeyProtection = "any_enrollment"
	BiometryProtectionAnyEnrollmentOrPasscode BiometryKeyProtection = "any_enrollment_or_passcode"
)

// BiometryPolicy carries the two independent biometry toggles. When
// FallbackToDevicePasscode is set, InvalidateOnEnrollmentChange has no
// effect; Protection encodes that precedence.
type BiometryPolicy struct {
	InvalidateOnEnrollmentChange bool
	FallbackToDevicePasscode     bool
}

func DefaultBiometryPolicy() BiometryPolicy {
	return BiometryPolicy{InvalidateOnEnrollmentChange: true}
}

func (p BiometryPolicy) Protection() BiometryKeyProtection {
	if p.FallbackToDevicePasscode {
		return BiometryProtectionAnyEnrollmentOrPasscode
	}
	if p.InvalidateOnEnrollmentChange {
		return BiometryProtectionCurrentEnrollment
	}
	return BiometryProtectionAnyEnrollment
}

// HTTPClientConfig is validated here and handed to the host transport layer;
// retry and backoff policy stay outside this SDK.
type HTTPClientConfig struct {
	RequestTimeout time.Duration
	BaseURL        string
}

func NewHTTPClientConfig(requestTimeout time.Duration, baseURL string) (HTTPClientConfig, error) {
	if requestTimeout < MinRequestTimeout {
		return HTTPClientConfig{}, NewInvalidConfigurationError(ReasonInvalidHTTPClientConfiguration,
			fmt.Sprintf("core: request timeout must be at least %s", MinRequestTimeout))
	}
	return HTTPClientConfig{
		RequestTimeout: requestTimeout,
		BaseURL:        strings.TrimSpace(baseURL),
	}, nil
}

func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{RequestTimeout: DefaultRequestTimeout}
}

// Config aggregates the loadable facade settings. Key material is never
// loaded through this path; NewInstanceConfig stays the only entry for it.
type Config struct {
	ServiceName string     `koanf:"service_name" mapstructure:"service_name"`
	HTTP        HTTPConfig `koanf:"http" mapstructure:"http"`
}

type HTTPConfig struct {
	RequestTimeoutSeconds int    `koanf:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
	BaseURL               string `koanf:"base_url" mapstructure:"base_url"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "mfa",
		HTTP: HTTPConfig{
			RequestTimeoutSeconds: int(DefaultRequestTimeout / time.Second),
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.HTTP.RequestTimeoutSeconds > 0 &&
		time.Duration(c.HTTP.RequestTimeoutSeconds)*time.Second < MinRequestTimeout {
		return NewInvalidConfigurationError(ReasonInvalidHTTPClientConfiguration,
			fmt.Sprintf("core: http request timeout must be at least %s", MinRequestTimeout))
	}
	return nil
}

// HTTPClientConfig materializes the validated transport policy.
func (c Config) HTTPClientConfig() (HTTPClientConfig, error) {
	timeout := time.Duration(c.HTTP.RequestTimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}
	return NewHTTPClientConfig(timeout, c.HTTP.BaseURL)
}
