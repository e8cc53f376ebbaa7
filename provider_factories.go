package mfa

import (
	"github.com/goliatone/go-mfa/core"
	"github.com/goliatone/go-mfa/security"
	memstore "github.com/goliatone/go-mfa/store/memory"
	"github.com/goliatone/go-mfa/store/prefs"
)

// MemoryStore returns an in-process credential store, suitable for tests and
// ephemeral hosts. Pass it to WithCredentialProviderFactory.
func MemoryStore() *memstore.Store {
	return memstore.NewStore()
}

// FilePreferenceStore persists lifecycle markers as JSON at path.
func FilePreferenceStore(path string) (core.PreferenceStore, error) {
	return prefs.NewFileStore(path)
}

// InstanceSecretProvider derives an at-rest sealing provider from the
// instance configuration, preferring the external encryption key over the
// application secret.
func InstanceSecretProvider(instance InstanceConfig, opts ...security.Option) (core.SecretProvider, error) {
	return security.NewInstanceSecretProvider(instance, opts...)
}

// AppKeySecretProvider seals stored credentials with caller-supplied key
// material.
func AppKeySecretProvider(keyMaterial []byte, opts ...security.Option) (core.SecretProvider, error) {
	return security.NewAppKeySecretProvider(keyMaterial, opts...)
}
