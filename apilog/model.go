// Package apilog implements the append-only per-request log named in the
// persisted-state section of the external interfaces design: one row per
// inbound request, keyed by requestId, written after the response completes.
package apilog

import "time"

// Entry is one append-only record of a completed (or failed) relay attempt.
type Entry struct {
	Id int `gorm:"primaryKey" json:"id"`

	RequestId string `gorm:"index;not null" json:"requestId"`
	APIKeyId  int    `gorm:"index" json:"apiKeyId"`

	Vendor       string `json:"vendor"`
	CredentialId int    `json:"credentialId"`
	Model        string `json:"model"`
	ClientFormat string `json:"clientFormat"`
	Path         string `json:"path"`

	StatusCode int    `json:"statusCode"`
	ErrorKind  string `json:"errorKind,omitempty"`
	ErrorMsg   string `json:"errorMessage,omitempty"`

	Stream        bool  `json:"stream"`
	DurationMs    int64 `json:"durationMs"`
	PromptTokens  int64 `json:"promptTokens"`
	OutputTokens  int64 `json:"outputTokens"`
	RetryAttempts int   `json:"retryAttempts"`

	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName pins the GORM table name independent of struct renames.
func (Entry) TableName() string { return "api_logs" }
