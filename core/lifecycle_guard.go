package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// StorageInitializedKey names the boolean marker the guard reads from the
// preference store. Preferences are cleared together with app data while the
// secure store may survive a reinstall, so an absent marker means every
// persisted credential predates the current installation.
const StorageInitializedKey = "mfa.storage.initialized"

// StorageLifecycleGuard decides, once per process, whether persisted
// credential storage must be purged before first use. It is an explicitly
// constructed, explicitly scoped object: hosts create one at startup and
// inject it into the facade instead of relying on hidden global state.
type StorageLifecycleGuard struct {
	prefs PreferenceStore

	mu                  sync.Mutex
	decided             bool
	purged              bool
	preferenceStoreName string
}

func NewStorageLifecycleGuard(prefs PreferenceStore) (*StorageLifecycleGuard, error) {
	if prefs == nil {
		return nil, NewInternalError(nil, "core: preference store is required")
	}
	return &StorageLifecycleGuard{prefs: prefs}, nil
}

// EnsureStorage runs the one-time decide-and-possibly-purge transition. The
// first call decides; every later call only verifies that the naming agrees
// with the first one, so two SDK instances cannot silently split their
// storage-generation marker across two preference stores.
func (g *StorageLifecycleGuard) EnsureStorage(
	ctx context.Context,
	provider CredentialProvider,
	naming KeychainNaming,
) (purged bool, err error) {
	if g == nil {
		return false, NewInternalError(nil, "core: storage lifecycle guard is required")
	}
	if provider == nil {
		return false, NewInternalError(nil, "core: credential provider is required")
	}

	prefName := strings.TrimSpace(naming.PreferenceStoreName)
	if prefName == "" {
		prefName = DefaultPreferenceStoreName
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.decided {
		if g.preferenceStoreName != prefName {
			return false, NewInvalidConfigurationError(ReasonInvalidKeychainConfiguration,
				fmt.Sprintf("core: preference store name %q conflicts with already-active %q",
					prefName, g.preferenceStoreName))
		}
		return g.purged, nil
	}

	initialized, present, err := g.prefs.GetBool(ctx, StorageInitializedKey)
	if err != nil {
		return false, taxonomyMapper(err)
	}

	purge := !present || !initialized
	if purge {
		if err := provider.PurgeAll(ctx); err != nil {
			return false, taxonomyMapper(err)
		}
		if err := g.prefs.SetBool(ctx, StorageInitializedKey, true); err != nil {
			return false, taxonomyMapper(err)
		}
	}

	g.decided = true
	g.purged = purge
	g.preferenceStoreName = prefName
	return purge, nil
}

// Decided reports whether the one-time transition already happened.
func (g *StorageLifecycleGuard) Decided() bool {
	if g == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decided
}

// Reset returns the guard to the undecided state. Intended for tests that
// simulate process restarts; production code has no reason to call it.
func (g *StorageLifecycleGuard) Reset() {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.decided = false
	g.purged = false
	g.preferenceStoreName = ""
}
