package sqlstore

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-mfa/core"
)

// CredentialProvider persists all credential material for one SDK instance
// in the mfa_secrets table. Logical store names come from the keychain
// naming, so several instances and several products can share one database
// without touching each other's entries. Payloads are sealed through the
// configured secret provider before they hit a row.
type CredentialProvider struct {
	db         *bun.DB
	repo       repository.Repository[*secretRecord]
	instanceID string
	naming     core.KeychainNaming
	secrets    core.SecretProvider
}

type ProviderOption func(*CredentialProvider)

// WithSecretProvider seals payloads at rest. Without it rows carry the raw
// bytes, which is only acceptable for development databases.
func WithSecretProvider(secrets core.SecretProvider) ProviderOption {
	return func(p *CredentialProvider) {
		p.secrets = secrets
	}
}

func NewCredentialProvider(
	db *bun.DB,
	instance core.InstanceConfig,
	naming core.KeychainNaming,
	opts ...ProviderOption,
) (*CredentialProvider, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	if strings.TrimSpace(instance.InstanceID) == "" {
		return nil, core.NewInvalidConfigurationError(core.ReasonInvalidInstanceConfiguration,
			"sqlstore: instance id is required")
	}

	repo := repository.NewRepository[*secretRecord](db, secretHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid secret repository wiring: %w", err)
		}
	}

	provider := &CredentialProvider{
		db:         db,
		repo:       repo,
		instanceID: strings.TrimSpace(instance.InstanceID),
		naming:     naming,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(provider)
	}
	return provider, nil
}

func (p *CredentialProvider) LoadActivationState(ctx context.Context) ([]byte, error) {
	record, err := p.findEntry(ctx, p.naming.StatusStoreName, p.instanceID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	return p.open(ctx, record.Payload)
}

func (p *CredentialProvider) SaveActivationState(ctx context.Context, state []byte) error {
	// An engine may serialize to zero bytes. Store that as absence so the
	// secret provider never has to seal an empty payload.
	if len(state) == 0 {
		return p.deleteEntry(ctx, p.naming.StatusStoreName, p.instanceID)
	}
	sealed, err := p.seal(ctx, state)
	if err != nil {
		return err
	}
	return p.upsertEntry(ctx, p.naming.StatusStoreName, p.instanceID, sealed, "")
}

func (p *CredentialProvider) RemoveActivationState(ctx context.Context) error {
	return p.deleteEntry(ctx, p.naming.StatusStoreName, p.instanceID)
}

// PossessionKey returns the shared possession key, creating it on first
// access. Creation runs in a transaction so two instances racing on an empty
// store converge on a single key.
func (p *CredentialProvider) PossessionKey(ctx context.Context) ([]byte, error) {
	record, err := p.findEntry(ctx, p.naming.PossessionStoreName, core.PossessionKeyName)
	if err != nil {
		return nil, err
	}
	if record != nil {
		return p.open(ctx, record.Payload)
	}

	key := make([]byte, core.PossessionKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, core.NewInternalError(err, "sqlstore: possession key generation failed")
	}
	sealed, err := p.seal(ctx, key)
	if err != nil {
		return nil, err
	}

	var existing []byte
	err = p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		records, _, listErr := p.listEntryTx(ctx, p.naming.PossessionStoreName, core.PossessionKeyName)
		if listErr != nil {
			return listErr
		}
		if len(records) > 0 {
			existing = records[0].Payload
			return nil
		}
		now := time.Now().UTC()
		_, createErr := p.repo.CreateTx(ctx, tx, &secretRecord{
			StoreName:   p.naming.PossessionStoreName,
			EntryKey:    core.PossessionKeyName,
			AccessGroup: p.naming.AccessGroupName,
			Payload:     sealed,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		return createErr
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return p.open(ctx, existing)
	}
	return key, nil
}

func (p *CredentialProvider) HasBiometryKey(ctx context.Context) (bool, error) {
	record, err := p.findEntry(ctx, p.naming.BiometryStoreName, p.biometryEntryKey())
	if err != nil {
		return false, err
	}
	return record != nil, nil
}

// BiometryKey releases the stored biometry key after the biometric gate
// passes. The gate outcome maps to the biometric taxonomy kinds; absence of
// the key itself is a notConfigured failure.
func (p *CredentialProvider) BiometryKey(ctx context.Context, biometricContext core.BiometricContext) ([]byte, error) {
	if biometricContext == nil {
		return nil, core.NewInvalidAuthenticationDataError(core.ReasonLocalAuthenticationContextMissing,
			"sqlstore: biometric context is required to release the biometry key")
	}

	record, err := p.findEntry(ctx, p.naming.BiometryStoreName, p.biometryEntryKey())
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, core.NewBiometricFailedError(core.ReasonBiometryNotConfigured,
			"sqlstore: no biometry key is configured for this instance")
	}

	if err := biometricContext.CanEvaluate(ctx); err != nil {
		return nil, core.NewBiometricFailedError(core.ReasonBiometryNotAvailable,
			fmt.Sprintf("sqlstore: biometric evaluation is not available: %v", err))
	}
	if err := biometricContext.Evaluate(ctx, "authenticate to release the biometry key"); err != nil {
		return nil, err
	}
	return p.open(ctx, record.Payload)
}

func (p *CredentialProvider) SaveBiometryKey(ctx context.Context, key []byte, protection core.BiometryKeyProtection) error {
	if len(key) == 0 {
		return core.NewInvalidParameterError("sqlstore: biometry key must not be empty")
	}
	sealed, err := p.seal(ctx, key)
	if err != nil {
		return err
	}
	return p.upsertEntry(ctx, p.naming.BiometryStoreName, p.biometryEntryKey(), sealed, string(protection))
}

func (p *CredentialProvider) RemoveBiometryKey(ctx context.Context) error {
	return p.deleteEntry(ctx, p.naming.BiometryStoreName, p.biometryEntryKey())
}

// PurgeAll wipes every entry in the four named stores, including entries
// written by other instances sharing the stores. The lifecycle guard calls
// this exactly once per fresh installation.
func (p *CredentialProvider) PurgeAll(ctx context.Context) error {
	if p == nil || p.db == nil {
		return fmt.Errorf("sqlstore: credential provider is not configured")
	}
	storeNames := []string{
		p.naming.StatusStoreName,
		p.naming.PossessionStoreName,
		p.naming.BiometryStoreName,
		p.naming.TokenStoreName,
	}
	_, err := p.db.NewDelete().
		Model((*secretRecord)(nil)).
		Where("store_name IN (?)", bun.In(storeNames)).
		Where("access_group = ?", p.naming.AccessGroupName).
		Exec(ctx)
	return err
}

func (p *CredentialProvider) biometryEntryKey() string {
	if strings.TrimSpace(p.naming.BiometryKeyName) != "" {
		return strings.TrimSpace(p.naming.BiometryKeyName)
	}
	return p.instanceID
}

func (p *CredentialProvider) findEntry(ctx context.Context, storeName string, entryKey string) (*secretRecord, error) {
	if p == nil || p.repo == nil {
		return nil, fmt.Errorf("sqlstore: credential provider is not configured")
	}
	records, _, err := p.listEntryTx(ctx, storeName, entryKey)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (p *CredentialProvider) listEntryTx(ctx context.Context, storeName string, entryKey string) ([]*secretRecord, int, error) {
	return p.repo.List(ctx,
		repository.SelectBy("store_name", "=", storeName),
		repository.SelectBy("entry_key", "=", entryKey),
		repository.SelectBy("access_group", "=", p.naming.AccessGroupName),
		repository.SelectPaginate(1, 0),
	)
}

func (p *CredentialProvider) upsertEntry(ctx context.Context, storeName string, entryKey string, payload []byte, protection string) error {
	if p == nil || p.db == nil {
		return fmt.Errorf("sqlstore: credential provider is not configured")
	}
	now := time.Now().UTC()
	return p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().
			Model((*secretRecord)(nil)).
			Set("payload = ?", payload).
			Set("protection = ?", protection).
			Set("updated_at = ?", now).
			Where("store_name = ?", storeName).
			Where("entry_key = ?", entryKey).
			Where("access_group = ?", p.naming.AccessGroupName).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, err := result.RowsAffected(); err == nil && affected > 0 {
			return nil
		}
		_, err = p.repo.CreateTx(ctx, tx, &secretRecord{
			StoreName:   storeName,
			EntryKey:    entryKey,
			AccessGroup: p.naming.AccessGroupName,
			Protection:  protection,
			Payload:     payload,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		return err
	})
}

func (p *CredentialProvider) deleteEntry(ctx context.Context, storeName string, entryKey string) error {
	if p == nil || p.db == nil {
		return fmt.Errorf("sqlstore: credential provider is not configured")
	}
	_, err := p.db.NewDelete().
		Model((*secretRecord)(nil)).
		Where("store_name = ?", storeName).
		Where("entry_key = ?", entryKey).
		Where("access_group = ?", p.naming.AccessGroupName).
		Exec(ctx)
	return err
}

func (p *CredentialProvider) seal(ctx context.Context, payload []byte) ([]byte, error) {
	if p.secrets == nil {
		return append([]byte(nil), payload...), nil
	}
	sealed, err := p.secrets.Encrypt(ctx, payload)
	if err != nil {
		return nil, core.NewInternalError(err, "sqlstore: sealing payload failed")
	}
	return sealed, nil
}

func (p *CredentialProvider) open(ctx context.Context, payload []byte) ([]byte, error) {
	if p.secrets == nil {
		return append([]byte(nil), payload...), nil
	}
	opened, err := p.secrets.Decrypt(ctx, payload)
	if err != nil {
		return nil, core.NewInternalError(err, "sqlstore: opening sealed payload failed")
	}
	return opened, nil
}
