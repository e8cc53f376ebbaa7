package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-mfa/core"
)

// StoreFactory builds SQL-backed credential providers over one shared bun
// database handle. It satisfies core.CredentialProviderFactory so the facade
// can construct a provider lazily from the validated configuration pair.
type StoreFactory struct {
	db      *bun.DB
	options []ProviderOption
}

func NewStoreFactory(db *bun.DB, opts ...ProviderOption) (*StoreFactory, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &StoreFactory{db: db, options: opts}, nil
}

func NewStoreFactoryFromPersistence(client *persistence.Client, opts ...ProviderOption) (*StoreFactory, error) {
	db, err := resolveBunDB(client)
	if err != nil {
		return nil, err
	}
	return NewStoreFactory(db, opts...)
}

// NewStoreFactoryFrom accepts a *bun.DB or anything exposing DB() *bun.DB,
// such as a go-persistence-bun client.
func NewStoreFactoryFrom(candidate any, opts ...ProviderOption) (*StoreFactory, error) {
	db, err := resolveBunDB(candidate)
	if err != nil {
		return nil, err
	}
	return NewStoreFactory(db, opts...)
}

func (f *StoreFactory) BuildCredentialProvider(instance core.InstanceConfig, naming core.KeychainNaming) (core.CredentialProvider, error) {
	if f == nil || f.db == nil {
		return nil, fmt.Errorf("sqlstore: store factory is not configured")
	}
	return NewCredentialProvider(f.db, instance, naming, f.options...)
}

func (f *StoreFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
