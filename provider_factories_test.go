package mfa

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"

	"github.com/goliatone/go-mfa/core"
)

func TestMemoryStoreBuildsProviders(t *testing.T) {
	store := MemoryStore()
	if store == nil {
		t.Fatal("expected memory store")
	}
	provider, err := store.BuildCredentialProvider(
		InstanceConfig{InstanceID: "factory-test"}, DefaultKeychainNaming())
	if err != nil {
		t.Fatalf("build provider: %v", err)
	}
	if provider == nil {
		t.Fatal("expected credential provider")
	}
}

func TestFilePreferenceStoreFactory(t *testing.T) {
	ctx := context.Background()
	store, err := FilePreferenceStore(t.TempDir() + "/prefs.json")
	if err != nil {
		t.Fatalf("file preference store: %v", err)
	}
	if err := store.SetBool(ctx, "initialized", true); err != nil {
		t.Fatalf("set bool: %v", err)
	}
	value, present, err := store.GetBool(ctx, "initialized")
	if err != nil {
		t.Fatalf("get bool: %v", err)
	}
	if !present || !value {
		t.Fatal("expected persisted flag")
	}
}

func TestSecretProviderFactories(t *testing.T) {
	ctx := context.Background()

	instance, err := NewInstanceConfig(
		"secret-test",
		factoryKey(core.ApplicationKeySize),
		factoryKey(core.ApplicationSecretSize),
		factoryKey(core.MinMasterServerPublicKeySize),
	)
	if err != nil {
		t.Fatalf("instance config: %v", err)
	}

	fromInstance, err := InstanceSecretProvider(instance)
	if err != nil {
		t.Fatalf("instance secret provider: %v", err)
	}
	sealed, err := fromInstance.Encrypt(ctx, []byte("state"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	opened, err := fromInstance.Decrypt(ctx, sealed)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(opened, []byte("state")) {
		t.Fatalf("expected round trip, got %q", opened)
	}

	fromKey, err := AppKeySecretProvider([]byte("0123456789abcdef"))
	if err != nil {
		t.Fatalf("app key secret provider: %v", err)
	}
	if _, err := fromKey.Decrypt(ctx, sealed); err == nil {
		t.Fatal("expected decrypt with a different key to fail")
	}
}

func factoryKey(size int) string {
	raw := make([]byte, size)
	for i := range raw {
		raw[i] = byte(size - i)
	}
	return base64.StdEncoding.EncodeToString(raw)
}
