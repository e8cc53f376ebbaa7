package mfa

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-mfa/core"
)

// StoreBackend pairs a name with a credential provider factory so hosts can
// select storage by configuration.
type StoreBackend struct {
	Name    string
	Factory core.CredentialProviderFactory
}

// SecretProviderFactory builds an at-rest sealing provider for one instance.
type SecretProviderFactory func(instance InstanceConfig) (core.SecretProvider, error)

// CommandBundleFactory builds a host-specific command bundle around the
// mutating service.
type CommandBundleFactory func(service CommandService) (any, error)

// ExtensionHooks collects host-registered backends before the service is
// built. Registration is write-once per name.
type ExtensionHooks struct {
	mu sync.RWMutex

	storeBackends   map[string]StoreBackend
	secretProviders map[string]SecretProviderFactory
	bundles         map[string]CommandBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		storeBackends:   map[string]StoreBackend{},
		secretProviders: map[string]SecretProviderFactory{},
		bundles:         map[string]CommandBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterStoreBackend(backend StoreBackend) error {
	if h == nil {
		return fmt.Errorf("mfa: extension hooks are nil")
	}
	name := strings.TrimSpace(strings.ToLower(backend.Name))
	if name == "" {
		return fmt.Errorf("mfa: store backend name is required")
	}
	if backend.Factory == nil {
		return fmt.Errorf("mfa: store backend %q has no factory", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.storeBackends[name]; exists {
		return fmt.Errorf("mfa: store backend %q already registered", name)
	}
	h.storeBackends[name] = StoreBackend{Name: name, Factory: backend.Factory}
	return nil
}

func (h *ExtensionHooks) RegisterSecretProviderFactory(name string, factory SecretProviderFactory) error {
	if h == nil {
		return fmt.Errorf("mfa: extension hooks are nil")
	}
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return fmt.Errorf("mfa: secret provider name is required")
	}
	if factory == nil {
		return fmt.Errorf("mfa: secret provider %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.secretProviders[name]; exists {
		return fmt.Errorf("mfa: secret provider %q already registered", name)
	}
	h.secretProviders[name] = factory
	return nil
}

func (h *ExtensionHooks) RegisterCommandBundle(name string, factory CommandBundleFactory) error {
	if h == nil {
		return fmt.Errorf("mfa: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("mfa: command bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("mfa: command bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("mfa: command bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// StoreBackend resolves a registered backend by name.
func (h *ExtensionHooks) StoreBackend(name string) (StoreBackend, bool) {
	if h == nil {
		return StoreBackend{}, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	backend, ok := h.storeBackends[strings.TrimSpace(strings.ToLower(name))]
	return backend, ok
}

// BuildSecretProvider resolves a registered factory and builds the provider
// for the given instance.
func (h *ExtensionHooks) BuildSecretProvider(name string, instance InstanceConfig) (core.SecretProvider, error) {
	if h == nil {
		return nil, fmt.Errorf("mfa: extension hooks are nil")
	}
	h.mu.RLock()
	factory, ok := h.secretProviders[strings.TrimSpace(strings.ToLower(name))]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("mfa: secret provider %q is not registered", name)
	}
	return factory(instance)
}

// BuildCommandBundles runs every registered bundle factory against one
// service, in name order.
func (h *ExtensionHooks) BuildCommandBundles(service CommandService) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("mfa: command service is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	factories := make(map[string]CommandBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) StoreBackendNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.storeBackends))
	for name := range h.storeBackends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
