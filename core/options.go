package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig      Config
	instance           InstanceConfig
	hasInstance        bool
	naming             KeychainNaming
	biometryPolicy     BiometryPolicy
	logger             Logger
	loggerProvider     LoggerProvider
	metricsRecorder    MetricsRecorder
	errorFactory       ErrorFactory
	errorMapper        ErrorMapper
	configProvider     ConfigProvider
	optionsResolver    OptionsResolver
	credentialProvider CredentialProvider
	providerFactory    CredentialProviderFactory
	engine             CryptoEngine
	guard              *StorageLifecycleGuard
	preferenceStore    PreferenceStore
	secretProvider     SecretProvider
	eventBus           LifecycleEventBus
	acceptedFactors    AcceptedFactors
}

type Option func(*serviceBuilder)

// WithInstanceConfig is mandatory: the facade refuses to build without a
// validated instance configuration.
func WithInstanceConfig(instance InstanceConfig) Option {
	return func(b *serviceBuilder) {
		b.instance = instance
		b.hasInstance = true
	}
}

func WithKeychainNaming(naming KeychainNaming) Option {
	return func(b *serviceBuilder) {
		b.naming = naming
	}
}

func WithBiometryPolicy(policy BiometryPolicy) Option {
	return func(b *serviceBuilder) {
		b.biometryPolicy = policy
	}
}

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithCredentialProvider(provider CredentialProvider) Option {
	return func(b *serviceBuilder) {
		b.credentialProvider = provider
	}
}

func WithCredentialProviderFactory(factory CredentialProviderFactory) Option {
	return func(b *serviceBuilder) {
		b.providerFactory = factory
	}
}

func WithCryptoEngine(engine CryptoEngine) Option {
	return func(b *serviceBuilder) {
		b.engine = engine
	}
}

func WithStorageLifecycleGuard(guard *StorageLifecycleGuard) Option {
	return func(b *serviceBuilder) {
		b.guard = guard
	}
}

func WithPreferenceStore(store PreferenceStore) Option {
	return func(b *serviceBuilder) {
		b.preferenceStore = store
	}
}

func WithSecretProvider(provider SecretProvider) Option {
	return func(b *serviceBuilder) {
		b.secretProvider = provider
	}
}

func WithEventBus(bus LifecycleEventBus) Option {
	return func(b *serviceBuilder) {
		b.eventBus = bus
	}
}

// WithAcceptedSigningFactors restricts which signing-class selectors the
// facade accepts for SignRequest by default.
func WithAcceptedSigningFactors(factors ...AuthenticationKind) Option {
	return func(b *serviceBuilder) {
		b.acceptedFactors = AcceptedFactors(factors)
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("mfa", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		naming:          DefaultKeychainNaming(),
		biometryPolicy:  DefaultBiometryPolicy(),
		eventBus:        NewMemoryEventBus(),
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return taxonomyMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	httpLayer := map[string]any{}
	if includeZero || cfg.HTTP.RequestTimeoutSeconds > 0 {
		httpLayer["request_timeout_seconds"] = cfg.HTTP.RequestTimeoutSeconds
	}
	if includeZero || strings.TrimSpace(cfg.HTTP.BaseURL) != "" {
		httpLayer["base_url"] = cfg.HTTP.BaseURL
	}
	if len(httpLayer) > 0 {
		layer["http"] = httpLayer
	}
	return layer
}
