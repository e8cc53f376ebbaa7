package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-mfa/core"
)

const credentialCacheKeyPrefix = "go-mfa::credential::v1"

// CachedCredentialProvider caches the two reads the facade issues on every
// operation: the serialized activation state and the biometry-key existence
// check. Key material itself is never cached; possession and biometry key
// reads always hit the base provider. Every write invalidates before it
// returns, so a read after a write observes the new value.
type CachedCredentialProvider struct {
	base       core.CredentialProvider
	cache      repositorycache.CacheService
	instanceID string
	naming     core.KeychainNaming
}

func NewCachedCredentialProvider(
	base core.CredentialProvider,
	cacheService repositorycache.CacheService,
	instance core.InstanceConfig,
	naming core.KeychainNaming,
) (*CachedCredentialProvider, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base credential provider is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: cache service is required")
	}
	if strings.TrimSpace(instance.InstanceID) == "" {
		return nil, core.NewInvalidConfigurationError(core.ReasonInvalidInstanceConfiguration,
			"sqlstore: instance id is required")
	}
	return &CachedCredentialProvider{
		base:       base,
		cache:      cacheService,
		instanceID: strings.TrimSpace(instance.InstanceID),
		naming:     naming,
	}, nil
}

// CredentialCacheKey returns the deterministic cache key contract:
// go-mfa::credential::v1::<kind>::<store_name>::<instance_id> with each
// segment URL-path escaped.
func CredentialCacheKey(kind string, storeName string, instanceID string) string {
	segments := []string{kind, storeName, instanceID}
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(append([]string{credentialCacheKeyPrefix}, segments...), "::")
}

func (p *CachedCredentialProvider) stateCacheKey() string {
	return CredentialCacheKey("state", p.naming.StatusStoreName, p.instanceID)
}

func (p *CachedCredentialProvider) biometryCacheKey() string {
	return CredentialCacheKey("biometry_present", p.naming.BiometryStoreName, p.instanceID)
}

func (p *CachedCredentialProvider) LoadActivationState(ctx context.Context) ([]byte, error) {
	if p == nil || p.base == nil || p.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached credential provider is not configured")
	}
	state, err := repositorycache.GetOrFetch(ctx, p.cache, p.stateCacheKey(), func(ctx context.Context) ([]byte, error) {
		return p.base.LoadActivationState(ctx)
	})
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}
	return append([]byte(nil), state...), nil
}

func (p *CachedCredentialProvider) SaveActivationState(ctx context.Context, state []byte) error {
	if err := p.base.SaveActivationState(ctx, state); err != nil {
		return err
	}
	return p.cache.Delete(ctx, p.stateCacheKey())
}

func (p *CachedCredentialProvider) RemoveActivationState(ctx context.Context) error {
	if err := p.base.RemoveActivationState(ctx); err != nil {
		return err
	}
	return p.cache.Delete(ctx, p.stateCacheKey())
}

func (p *CachedCredentialProvider) PossessionKey(ctx context.Context) ([]byte, error) {
	return p.base.PossessionKey(ctx)
}

func (p *CachedCredentialProvider) HasBiometryKey(ctx context.Context) (bool, error) {
	if p == nil || p.base == nil || p.cache == nil {
		return false, fmt.Errorf("sqlstore: cached credential provider is not configured")
	}
	return repositorycache.GetOrFetch(ctx, p.cache, p.biometryCacheKey(), func(ctx context.Context) (bool, error) {
		return p.base.HasBiometryKey(ctx)
	})
}

func (p *CachedCredentialProvider) BiometryKey(ctx context.Context, biometricContext core.BiometricContext) ([]byte, error) {
	return p.base.BiometryKey(ctx, biometricContext)
}

func (p *CachedCredentialProvider) SaveBiometryKey(ctx context.Context, key []byte, protection core.BiometryKeyProtection) error {
	if err := p.base.SaveBiometryKey(ctx, key, protection); err != nil {
		return err
	}
	return p.cache.Delete(ctx, p.biometryCacheKey())
}

func (p *CachedCredentialProvider) RemoveBiometryKey(ctx context.Context) error {
	if err := p.base.RemoveBiometryKey(ctx); err != nil {
		return err
	}
	return p.cache.Delete(ctx, p.biometryCacheKey())
}

func (p *CachedCredentialProvider) PurgeAll(ctx context.Context) error {
	if err := p.base.PurgeAll(ctx); err != nil {
		return err
	}
	if err := p.cache.Delete(ctx, p.stateCacheKey()); err != nil {
		return err
	}
	return p.cache.Delete(ctx, p.biometryCacheKey())
}

var _ core.CredentialProvider = (*CachedCredentialProvider)(nil)
