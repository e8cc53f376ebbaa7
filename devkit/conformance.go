package devkit

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goliatone/go-mfa/core"
)

// ValidateCredentialProviderConformance exercises the full credential
// provider contract against an empty store: activation-state round trip,
// possession-key idempotency, the biometry gate with its taxonomy reasons,
// and PurgeAll. Store authors run it once against their implementation; it
// leaves the store empty on success.
func ValidateCredentialProviderConformance(ctx context.Context, provider core.CredentialProvider) error {
	if provider == nil {
		return fmt.Errorf("devkit: credential provider is required")
	}

	state, err := provider.LoadActivationState(ctx)
	if err != nil {
		return fmt.Errorf("devkit: load on empty store: %w", err)
	}
	if state != nil {
		return fmt.Errorf("devkit: empty store must report absent state as (nil, nil)")
	}

	if err := provider.SaveActivationState(ctx, []byte("conformance-state")); err != nil {
		return fmt.Errorf("devkit: save activation state: %w", err)
	}
	state, err = provider.LoadActivationState(ctx)
	if err != nil {
		return fmt.Errorf("devkit: load activation state: %w", err)
	}
	if string(state) != "conformance-state" {
		return fmt.Errorf("devkit: activation state round trip mismatch: got %q", state)
	}
	if err := provider.SaveActivationState(ctx, nil); err != nil {
		return fmt.Errorf("devkit: save empty activation state: %w", err)
	}
	state, err = provider.LoadActivationState(ctx)
	if err != nil {
		return fmt.Errorf("devkit: load after empty save: %w", err)
	}
	if state != nil {
		return fmt.Errorf("devkit: saving an empty state must clear the stored state")
	}
	if err := provider.RemoveActivationState(ctx); err != nil {
		return fmt.Errorf("devkit: remove activation state: %w", err)
	}

	key, err := provider.PossessionKey(ctx)
	if err != nil {
		return fmt.Errorf("devkit: possession key: %w", err)
	}
	if len(key) != core.PossessionKeySize {
		return fmt.Errorf("devkit: possession key must be %d bytes, got %d", core.PossessionKeySize, len(key))
	}
	again, err := provider.PossessionKey(ctx)
	if err != nil {
		return fmt.Errorf("devkit: second possession key read: %w", err)
	}
	if !bytes.Equal(key, again) {
		return fmt.Errorf("devkit: possession key must be idempotent")
	}

	has, err := provider.HasBiometryKey(ctx)
	if err != nil {
		return fmt.Errorf("devkit: biometry existence check: %w", err)
	}
	if has {
		return fmt.Errorf("devkit: empty store must report no biometry key")
	}
	if _, err := provider.BiometryKey(ctx, ApprovingBiometricContext()); core.ReasonOf(err) != core.ReasonBiometryNotConfigured {
		return fmt.Errorf("devkit: absent biometry key must fail with reason notConfigured, got %v", err)
	}

	stored := bytes.Repeat([]byte{0x42}, core.BiometryKeySize)
	if err := provider.SaveBiometryKey(ctx, stored, core.BiometryProtectionCurrentEnrollment); err != nil {
		return fmt.Errorf("devkit: save biometry key: %w", err)
	}
	released, err := provider.BiometryKey(ctx, ApprovingBiometricContext())
	if err != nil {
		return fmt.Errorf("devkit: release biometry key: %w", err)
	}
	if !bytes.Equal(released, stored) {
		return fmt.Errorf("devkit: biometry key round trip mismatch")
	}
	if err := provider.RemoveBiometryKey(ctx); err != nil {
		return fmt.Errorf("devkit: remove biometry key: %w", err)
	}
	if err := provider.RemoveBiometryKey(ctx); err != nil {
		return fmt.Errorf("devkit: removing an absent biometry key must succeed: %w", err)
	}

	if err := provider.PurgeAll(ctx); err != nil {
		return fmt.Errorf("devkit: purge: %w", err)
	}
	state, err = provider.LoadActivationState(ctx)
	if err != nil {
		return fmt.Errorf("devkit: load after purge: %w", err)
	}
	if state != nil {
		return fmt.Errorf("devkit: purge must remove the activation state")
	}
	fresh, err := provider.PossessionKey(ctx)
	if err != nil {
		return fmt.Errorf("devkit: possession key after purge: %w", err)
	}
	if bytes.Equal(key, fresh) {
		return fmt.Errorf("devkit: purge must discard the possession key")
	}
	return nil
}

// ValidatePreferenceStoreConformance checks the marker semantics the
// lifecycle guard depends on.
func ValidatePreferenceStoreConformance(ctx context.Context, store core.PreferenceStore) error {
	if store == nil {
		return fmt.Errorf("devkit: preference store is required")
	}
	const key = "devkit.conformance.marker"

	_, present, err := store.GetBool(ctx, key)
	if err != nil {
		return fmt.Errorf("devkit: get on absent key: %w", err)
	}
	if present {
		return fmt.Errorf("devkit: absent key must report present=false")
	}
	if err := store.SetBool(ctx, key, true); err != nil {
		return fmt.Errorf("devkit: set marker: %w", err)
	}
	value, present, err := store.GetBool(ctx, key)
	if err != nil {
		return fmt.Errorf("devkit: get marker: %w", err)
	}
	if !present || !value {
		return fmt.Errorf("devkit: marker round trip mismatch: value=%v present=%v", value, present)
	}
	if err := store.SetBool(ctx, key, false); err != nil {
		return fmt.Errorf("devkit: overwrite marker: %w", err)
	}
	value, present, err = store.GetBool(ctx, key)
	if err != nil {
		return fmt.Errorf("devkit: get overwritten marker: %w", err)
	}
	if !present || value {
		return fmt.Errorf("devkit: overwrite must win: value=%v present=%v", value, present)
	}
	return nil
}
