package sqlstore

import "github.com/goliatone/go-mfa/core"

var (
	_ core.CredentialProvider        = (*CredentialProvider)(nil)
	_ core.CredentialProvider        = (*CachedCredentialProvider)(nil)
	_ core.CredentialProviderFactory = (*StoreFactory)(nil)
)
