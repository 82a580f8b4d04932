package apikey

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
)

// StoreUnavailable wraps persistence failures so callers can distinguish
// infrastructure errors from normal not-found/duplicate conditions.
type StoreUnavailable struct{ Cause error }

func (e *StoreUnavailable) Error() string { return "api key store unavailable: " + e.Cause.Error() }
func (e *StoreUnavailable) Unwrap() error { return e.Cause }

// ErrNotFound is returned by GetByHash/GetById when no key matches.
var ErrNotFound = errors.New("api key not found")

// Store is the downstream API-key table's persistence contract. Lookups are
// by hash on the request hot path and must be safe for concurrent use.
type Store interface {
	GetByHash(ctx context.Context, hash string) (*APIKey, error)
	GetById(ctx context.Context, id int) (*APIKey, error)
	List(ctx context.Context) ([]*APIKey, error)
	Create(ctx context.Context, k *APIKey) error
	Update(ctx context.Context, k *APIKey) error
	Delete(ctx context.Context, id int) error

	// Touch records a successful authentication: increments UseCount and
	// stamps LastUsedAt. Best-effort; callers must not fail a request over
	// a Touch error.
	Touch(ctx context.Context, id int, when time.Time) error
}
