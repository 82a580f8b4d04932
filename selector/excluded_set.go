// Package selector implements account selection with exclusion and retry,
// per the account-selector-&-failover component design.
package selector

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// ExcludedSet is the process-wide set of quota-exhausted credential ids. It
// must permit concurrent add & read and an atomic, idempotent clear; the
// clear may race with inserts per the concurrency design (the cost of a
// spurious retry is bounded, so no stronger synchronisation is required).
type ExcludedSet interface {
	Add(ctx context.Context, vendor string, id int, until time.Time)
	Contains(ctx context.Context, vendor string, id int) bool
	Clear(ctx context.Context, vendor string)
}

// MemExcludedSet backs the excluded set with an in-process TTL cache, suitable
// for a single-instance deployment or as the fallback when no Redis is
// configured.
type MemExcludedSet struct {
	mu    sync.Mutex
	cache *cache.Cache
}

var _ ExcludedSet = (*MemExcludedSet)(nil)

// NewMemExcludedSet builds an excluded set with no default TTL; callers pass
// an explicit expiry on every Add via until.
func NewMemExcludedSet() *MemExcludedSet {
	return &MemExcludedSet{cache: cache.New(cache.NoExpiration, time.Minute)}
}

func excludedKey(vendor string, id int) string {
	return vendor + ":" + strconv.Itoa(id)
}

func (s *MemExcludedSet) Add(_ context.Context, vendor string, id int, until time.Time) {
	ttl := time.Until(until)
	if ttl <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(excludedKey(vendor, id), until, ttl)
}

func (s *MemExcludedSet) Contains(_ context.Context, vendor string, id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, found := s.cache.Get(excludedKey(vendor, id))
	return found
}

// Clear removes every entry for vendor. It is idempotent and safe to call on
// a schedule regardless of concurrent inserts.
func (s *MemExcludedSet) Clear(_ context.Context, vendor string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := vendor + ":"
	for key := range s.cache.Items() {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			s.cache.Delete(key)
		}
	}
}

// NextHourBoundary returns the next top-of-hour instant strictly after now,
// fixing the open question on quotaExhaustedUntil reset semantics to align
// with the excluded-set clear schedule.
func NextHourBoundary(now time.Time) time.Time {
	truncated := now.Truncate(time.Hour)
	if !truncated.After(now) {
		truncated = truncated.Add(time.Hour)
	}
	return truncated
}
