// Package memstore holds credential material in process memory. It exists
// for development hosts and for tests that need a conformant provider without
// a database; nothing survives a restart.
package memstore

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/goliatone/go-mfa/core"
)

type entryID struct {
	storeName   string
	entryKey    string
	accessGroup string
}

type entry struct {
	payload    []byte
	protection core.BiometryKeyProtection
}

// Store is the shared backing map. Providers built from one store see each
// other's entries the way sql providers sharing a database do, so possession
// keys are shared and purges cross instance boundaries.
type Store struct {
	mu      sync.Mutex
	entries map[entryID]entry
}

func NewStore() *Store {
	return &Store{entries: map[entryID]entry{}}
}

// BuildCredentialProvider satisfies core.CredentialProviderFactory.
func (s *Store) BuildCredentialProvider(instance core.InstanceConfig, naming core.KeychainNaming) (core.CredentialProvider, error) {
	return s.Provider(instance, naming)
}

func (s *Store) Provider(instance core.InstanceConfig, naming core.KeychainNaming) (*CredentialProvider, error) {
	if s == nil {
		return nil, fmt.Errorf("memstore: store is required")
	}
	instanceID := strings.TrimSpace(instance.InstanceID)
	if instanceID == "" {
		return nil, core.NewInvalidConfigurationError(core.ReasonInvalidInstanceConfiguration,
			"memstore: instance id is required")
	}
	return &CredentialProvider{
		store:      s,
		instanceID: instanceID,
		naming:     naming,
	}, nil
}

func (s *Store) get(id entryID) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), stored.payload...), true
}

func (s *Store) put(id entryID, payload []byte, protection core.BiometryKeyProtection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = entry{
		payload:    append([]byte(nil), payload...),
		protection: protection,
	}
}

func (s *Store) remove(id entryID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// getOrCreate stores generated on the first call and returns the stored
// payload afterwards, so racing creators converge on one value.
func (s *Store) getOrCreate(id entryID, generate func() ([]byte, error)) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, ok := s.entries[id]; ok {
		return append([]byte(nil), stored.payload...), nil
	}
	payload, err := generate()
	if err != nil {
		return nil, err
	}
	s.entries[id] = entry{payload: append([]byte(nil), payload...)}
	return payload, nil
}

func (s *Store) purge(storeNames []string, accessGroup string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	named := make(map[string]struct{}, len(storeNames))
	for _, name := range storeNames {
		named[name] = struct{}{}
	}
	for id := range s.entries {
		if id.accessGroup != accessGroup {
			continue
		}
		if _, ok := named[id.storeName]; ok {
			delete(s.entries, id)
		}
	}
}

// CredentialProvider implements core.CredentialProvider over a shared Store.
type CredentialProvider struct {
	store      *Store
	instanceID string
	naming     core.KeychainNaming
}

func (p *CredentialProvider) LoadActivationState(context.Context) ([]byte, error) {
	payload, ok := p.store.get(p.statusID())
	if !ok {
		return nil, nil
	}
	return payload, nil
}

func (p *CredentialProvider) SaveActivationState(_ context.Context, state []byte) error {
	if len(state) == 0 {
		p.store.remove(p.statusID())
		return nil
	}
	p.store.put(p.statusID(), state, "")
	return nil
}

func (p *CredentialProvider) RemoveActivationState(context.Context) error {
	p.store.remove(p.statusID())
	return nil
}

func (p *CredentialProvider) PossessionKey(context.Context) ([]byte, error) {
	return p.store.getOrCreate(p.possessionID(), func() ([]byte, error) {
		key := make([]byte, core.PossessionKeySize)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, core.NewInternalError(err, "memstore: possession key generation failed")
		}
		return key, nil
	})
}

func (p *CredentialProvider) HasBiometryKey(context.Context) (bool, error) {
	_, ok := p.store.get(p.biometryID())
	return ok, nil
}

func (p *CredentialProvider) BiometryKey(ctx context.Context, biometricContext core.BiometricContext) ([]byte, error) {
	if biometricContext == nil {
		return nil, core.NewInvalidAuthenticationDataError(core.ReasonLocalAuthenticationContextMissing,
			"memstore: biometric context is required to release the biometry key")
	}
	payload, ok := p.store.get(p.biometryID())
	if !ok {
		return nil, core.NewBiometricFailedError(core.ReasonBiometryNotConfigured,
			"memstore: no biometry key is configured for this instance")
	}
	if err := biometricContext.CanEvaluate(ctx); err != nil {
		return nil, core.NewBiometricFailedError(core.ReasonBiometryNotAvailable,
			fmt.Sprintf("memstore: biometric evaluation is not available: %v", err))
	}
	if err := biometricContext.Evaluate(ctx, "authenticate to release the biometry key"); err != nil {
		return nil, err
	}
	return payload, nil
}

func (p *CredentialProvider) SaveBiometryKey(_ context.Context, key []byte, protection core.BiometryKeyProtection) error {
	if len(key) == 0 {
		return core.NewInvalidParameterError("memstore: biometry key must not be empty")
	}
	p.store.put(p.biometryID(), key, protection)
	return nil
}

func (p *CredentialProvider) RemoveBiometryKey(context.Context) error {
	p.store.remove(p.biometryID())
	return nil
}

func (p *CredentialProvider) PurgeAll(context.Context) error {
	p.store.purge([]string{
		p.naming.StatusStoreName,
		p.naming.PossessionStoreName,
		p.naming.BiometryStoreName,
		p.naming.TokenStoreName,
	}, p.naming.AccessGroupName)
	return nil
}

func (p *CredentialProvider) statusID() entryID {
	return entryID{
		storeName:   p.naming.StatusStoreName,
		entryKey:    p.instanceID,
		accessGroup: p.naming.AccessGroupName,
	}
}

func (p *CredentialProvider) possessionID() entryID {
	return entryID{
		storeName:   p.naming.PossessionStoreName,
		entryKey:    core.PossessionKeyName,
		accessGroup: p.naming.AccessGroupName,
	}
}

func (p *CredentialProvider) biometryID() entryID {
	entryKey := strings.TrimSpace(p.naming.BiometryKeyName)
	if entryKey == "" {
		entryKey = p.instanceID
	}
	return entryID{
		storeName:   p.naming.BiometryStoreName,
		entryKey:    entryKey,
		accessGroup: p.naming.AccessGroupName,
	}
}

var (
	_ core.CredentialProvider        = (*CredentialProvider)(nil)
	_ core.CredentialProviderFactory = (*Store)(nil)
)
