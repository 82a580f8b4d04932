// Package apikey implements the downstream client API-key table: the
// Bearer/X-API-Key credentials an operator issues to its own callers, looked
// up by SHA-256 hash rather than by the key itself.
package apikey

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Hash returns the lookup key stored alongside (never instead of, since the
// plaintext is never persisted) an APIKey record: the hex-encoded SHA-256
// digest of the raw key presented on the wire.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// APIKey is one operator-issued downstream credential.
type APIKey struct {
	Id   int    `gorm:"primaryKey" json:"id"`
	Name string `json:"name"`

	// KeyHash is the SHA-256 hex digest of the raw key; the only form ever
	// persisted or logged. KeyPrefix retains the first characters of the
	// plaintext purely for operator-facing identification.
	KeyHash   string `gorm:"uniqueIndex;not null" json:"-"`
	KeyPrefix string `json:"keyPrefix"`

	IsActive bool `gorm:"index" json:"isActive"`

	// AllowedModels restricts which canonical model names this key may
	// request; empty means unrestricted.
	AllowedModels []string `gorm:"serializer:json" json:"allowedModels,omitempty"`

	UseCount   int64      `json:"useCount"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName pins the GORM table name independent of struct renames.
func (APIKey) TableName() string { return "api_keys" }

// Active reports whether this key may currently authenticate a request.
func (k *APIKey) Active() bool { return k.IsActive }

// AllowsModel reports whether model is permitted for this key.
func (k *APIKey) AllowsModel(model string) bool {
	if len(k.AllowedModels) == 0 {
		return true
	}
	for _, m := range k.AllowedModels {
		if m == model {
			return true
		}
	}
	return false
}
