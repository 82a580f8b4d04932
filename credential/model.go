// Package credential implements the per-vendor credential pool: persistence,
// lifecycle mutation, and the error-table quarantine described in the data model.
package credential

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/Laisky/errors/v2"
)

// Vendor identifies which upstream a credential authenticates against.
type Vendor string

// The vendor set named in the data model.
const (
	VendorAnthropic    Vendor = "anthropic"
	VendorVertex       Vendor = "vertex"
	VendorWarp         Vendor = "warp"
	VendorOrchids      Vendor = "orchids"
	VendorGeminiSocial Vendor = "gemini-social"
	VendorKiro         Vendor = "kiro"
)

// RateLimits holds the vendor-specific rate-limit window snapshot parsed from
// upstream response headers or usage probes. It is persisted as a JSON column.
type RateLimits struct {
	RequestsLimit     int64     `json:"requests_limit,omitempty"`
	RequestsRemaining int64     `json:"requests_remaining,omitempty"`
	RequestsReset     time.Time `json:"requests_reset,omitempty"`
	TokensLimit       int64     `json:"tokens_limit,omitempty"`
	TokensRemaining   int64     `json:"tokens_remaining,omitempty"`
	TokensReset       time.Time `json:"tokens_reset,omitempty"`
	InputTokensLimit  int64     `json:"input_tokens_limit,omitempty"`
	OutputTokensLimit int64     `json:"output_tokens_limit,omitempty"`
	Unified5hUtil     float64   `json:"unified_5h_utilization,omitempty"`
	Unified5hReset    time.Time `json:"unified_5h_reset,omitempty"`
	Unified7dUtil     float64   `json:"unified_7d_utilization,omitempty"`
	Unified7dReset    time.Time `json:"unified_7d_reset,omitempty"`
}

// Value implements driver.Valuer so GORM stores RateLimits as a JSON column.
func (r RateLimits) Value() (driver.Value, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "marshal rate limits")
	}
	return string(b), nil
}

// Scan implements sql.Scanner so GORM hydrates RateLimits from a JSON column.
func (r *RateLimits) Scan(value any) error {
	if value == nil {
		*r = RateLimits{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.Errorf("unsupported rate limits column type %T", value)
	}
	if len(raw) == 0 {
		*r = RateLimits{}
		return nil
	}
	return json.Unmarshal(raw, r)
}

// Credential is a per-vendor record keyed by a process-local integer id.
type Credential struct {
	Id        int    `gorm:"primaryKey" json:"id"`
	Vendor    Vendor `gorm:"index;not null" json:"vendor"`
	Name      string `json:"name"`
	Email     string `json:"email"`

	// RefreshToken and AccessToken are stored AES-GCM encrypted at rest (see
	// common.EncryptSecret) and are decrypted only inside the token refresher.
	RefreshToken string     `json:"-"`
	AccessToken  string     `json:"-"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`

	// Vendor-specific fields; zero-valued when not applicable to Vendor.
	ProfileArn   string `json:"profileArn,omitempty"`
	ProjectId    string `json:"projectId,omitempty"`
	Region       string `json:"region,omitempty"`
	ClientId     string `json:"clientId,omitempty"`
	ClientSecret string `json:"-"`
	APIBaseURL   string `json:"apiBaseUrl,omitempty"`

	IsActive  bool `gorm:"index" json:"isActive"`
	Weight    int  `gorm:"default:1" json:"weight"`
	UseCount  int64 `json:"useCount"`
	ErrorCount int  `json:"errorCount"`
	LastError  string `json:"lastError,omitempty"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`

	QuotaLimit int64 `json:"quotaLimit"`
	QuotaUsed  int64 `json:"quotaUsed"`

	RateLimits RateLimits `gorm:"type:text" json:"rateLimits"`

	QuotaExhaustedUntil *time.Time `json:"quotaExhaustedUntil,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName pins the GORM table name independent of struct renames.
func (Credential) TableName() string { return "credentials" }

// Active reports invariant (c): isActive AND quota not currently exhausted.
func (c *Credential) Active(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.QuotaExhaustedUntil != nil && c.QuotaExhaustedUntil.After(now) {
		return false
	}
	return true
}

// AccessTokenExpired reports invariant (b): treat as expired inside refreshSkew of expiry.
func (c *Credential) AccessTokenExpired(now time.Time, refreshSkew time.Duration) bool {
	if c.AccessToken == "" {
		return true
	}
	if c.ExpiresAt == nil {
		return false
	}
	return !now.Add(refreshSkew).Before(*c.ExpiresAt)
}

// ErrorCredential is the quarantine ("error table") record for a credential
// that has been moved out of the active pool after repeated failures.
type ErrorCredential struct {
	Id           int    `gorm:"primaryKey" json:"id"`
	CredentialId int    `gorm:"index;not null" json:"credentialId"`
	Vendor       Vendor `gorm:"index" json:"vendor"`
	Name         string `json:"name"`
	Reason       string `json:"reason"`
	// Snapshot preserves enough of the original record to support restore.
	RefreshToken string    `json:"-"`
	ClientId     string    `json:"clientId,omitempty"`
	ClientSecret string    `json:"-"`
	ProjectId    string    `json:"projectId,omitempty"`
	Region       string    `json:"region,omitempty"`
	APIBaseURL   string    `json:"apiBaseUrl,omitempty"`
	QuarantinedAt time.Time `json:"quarantinedAt"`
}

// TableName pins the GORM table name independent of struct renames.
func (ErrorCredential) TableName() string { return "error_credentials" }
