package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

// secretRecord is one sealed entry in one logical secret store. The
// (store_name, entry_key, access_group) triple is unique; the payload is
// opaque ciphertext when a secret provider is configured.
type secretRecord struct {
	bun.BaseModel `bun:"table:mfa_secrets,alias:ms"`

	ID          string    `bun:"id,pk"`
	StoreName   string    `bun:"store_name,notnull"`
	EntryKey    string    `bun:"entry_key,notnull"`
	AccessGroup string    `bun:"access_group,notnull,default:''"`
	Protection  string    `bun:"protection,notnull,default:''"`
	Payload     []byte    `bun:"payload,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
