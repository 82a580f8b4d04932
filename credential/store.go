package credential

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
)

// StoreUnavailable wraps persistence failures so callers can distinguish
// infrastructure errors from normal not-found/duplicate conditions.
type StoreUnavailable struct{ Cause error }

func (e *StoreUnavailable) Error() string { return "credential store unavailable: " + e.Cause.Error() }
func (e *StoreUnavailable) Unwrap() error { return e.Cause }

// DuplicateCredential is returned by Add when a uniqueness constraint is violated.
type DuplicateCredential struct {
	Vendor Vendor
	Key    string
}

func (e *DuplicateCredential) Error() string {
	return "duplicate credential for vendor " + string(e.Vendor) + ": " + e.Key
}

// ErrNotFound is returned by GetById when no credential matches.
var ErrNotFound = errors.New("credential not found")

// Store is the credential pool's persistence and lifecycle contract. All
// mutations are idempotent per (id, field); all methods are safe to call
// concurrently from multiple request workers and the background refresher.
type Store interface {
	GetAll(ctx context.Context, vendor Vendor) ([]*Credential, error)
	GetActive(ctx context.Context, vendor Vendor) ([]*Credential, error)

	// GetRandomActive returns one credential uniformly at random among those
	// active, not excluded, and not currently quota-exhausted. Returns
	// (nil, nil) when none qualify.
	GetRandomActive(ctx context.Context, vendor Vendor, excludeIds map[int]bool) (*Credential, error)

	GetById(ctx context.Context, id int) (*Credential, error)
	Add(ctx context.Context, c *Credential) error
	Update(ctx context.Context, c *Credential) error

	UpdateToken(ctx context.Context, id int, accessToken string, expiresAt time.Time) error
	UpdateQuota(ctx context.Context, id int, limit, used int64) error
	UpdateRateLimits(ctx context.Context, id int, rl RateLimits) error
	IncrementUseCount(ctx context.Context, id int) error

	// IncrementErrorCount increments the consecutive-error counter and records
	// lastError; once the count crosses the vendor threshold it atomically
	// calls MoveToError.
	IncrementErrorCount(ctx context.Context, id int, message string) error

	MarkQuotaExhausted(ctx context.Context, id int, until *time.Time) error
	MoveToError(ctx context.Context, id int, reason string) error
	RestoreFromError(ctx context.Context, errorId int, newRefreshToken string) (*Credential, error)
	Delete(ctx context.Context, id int) error

	ListErrors(ctx context.Context, vendor Vendor) ([]*ErrorCredential, error)
}
