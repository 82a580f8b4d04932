package selector

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/relaygate/core/credential"
	"github.com/relaygate/core/errs"
	"github.com/relaygate/core/internal/config"
	"github.com/relaygate/core/internal/logging"
	"github.com/relaygate/core/token"

	"github.com/Laisky/zap"
)

// Op is one attempt against a chosen credential. It must classify its own
// failures precisely enough for Selector to decide retry vs. quarantine vs.
// propagate, by returning an *errs.Error.
type Op func(ctx context.Context, c *credential.Credential) error

// Selector implements withCredential: pick a credential per attempt, retry on
// transient failure with a different credential, and maintain the process-wide
// excluded set across requests.
type Selector struct {
	Store     credential.Store
	Refresher *token.Refresher
	Excluded  ExcludedSet
	MaxRetries int

	clearOnce sync.Once
}

// New builds a Selector with the package defaults (MaxRetries from config).
func New(store credential.Store, refresher *token.Refresher, excluded ExcludedSet) *Selector {
	return &Selector{
		Store:      store,
		Refresher:  refresher,
		Excluded:   excluded,
		MaxRetries: config.MaxRetries,
	}
}

// StartExcludedSetResetLoop clears the excluded set for vendor on every
// excludeResetInterval tick, matching the process-wide exclusion design.
func (s *Selector) StartExcludedSetResetLoop(ctx context.Context, vendor credential.Vendor) {
	ticker := time.NewTicker(config.ExcludeResetInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Excluded.Clear(ctx, string(vendor))
			}
		}
	}()
}

// WithCredential implements the retry loop from the account-selector design:
// pick a credential (excluding previously-tried and process-wide-excluded
// ids), run op, and react to its failure classification. It returns
// NoCredentialAvailable when the pool is exhausted.
func (s *Selector) WithCredential(ctx context.Context, vendor credential.Vendor, op Op) error {
	tried := make(map[int]bool)
	maxRetries := s.MaxRetries
	if maxRetries <= 0 {
		maxRetries = config.DefaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		excludeSet := s.mergedExclusions(ctx, vendor, tried)

		c, err := s.Store.GetRandomActive(ctx, vendor, excludeSet)
		if err != nil {
			return errs.Wrap(errs.KindNoCredentialAvailable, err, "list active credentials failed")
		}
		if c == nil {
			if lastErr != nil {
				return lastErr
			}
			return errs.NoCredentialAvailable(string(vendor))
		}
		tried[c.Id] = true

		err = op(ctx, c)
		if err == nil {
			if incErr := s.Store.IncrementUseCount(ctx, c.Id); incErr != nil {
				logging.SysError("increment use count failed", zap.Int("credential_id", c.Id), zap.Error(incErr))
			}
			return nil
		}

		lastErr = err
		classified, ok := errs.As(err)
		if !ok {
			classified = errs.Wrap(errs.KindUpstreamTransient, err, "unclassified relay failure")
		}

		switch classified.Kind {
		case errs.KindUpstreamTransient:
			if errs.IsQuotaExceeded(classified.Status, classified.Message) {
				until := nextQuotaWindow()
				s.Excluded.Add(ctx, string(vendor), c.Id, until)
				_ = s.Store.MarkQuotaExhausted(ctx, c.Id, &until)
			} else {
				_ = s.Store.IncrementErrorCount(ctx, c.Id, classified.Message)
			}
			continue

		case errs.KindAuthError, errs.KindTokenRefreshFailed:
			_ = s.Store.IncrementErrorCount(ctx, c.Id, classified.Message)
			if classified.Status == http.StatusUnauthorized || classified.Status == http.StatusForbidden {
				if _, refreshErr := s.Refresher.ForceRefresh(ctx, c); refreshErr == nil {
					delete(tried, c.Id) // allow retrying this credential with the new token
					attempt--
				}
			}
			continue

		default:
			// Non-retryable client-caused failure: propagate immediately.
			return classified
		}
	}

	if lastErr != nil {
		return lastErr
	}
	return errs.NoCredentialAvailable(string(vendor))
}

func (s *Selector) mergedExclusions(ctx context.Context, vendor credential.Vendor, tried map[int]bool) map[int]bool {
	merged := make(map[int]bool, len(tried))
	for id := range tried {
		merged[id] = true
	}
	active, err := s.Store.GetActive(ctx, vendor)
	if err != nil {
		return merged
	}
	for _, c := range active {
		if s.Excluded.Contains(ctx, string(vendor), c.Id) {
			merged[c.Id] = true
		}
	}
	return merged
}

// nextQuotaWindow fixes the quotaExhaustedUntil reset to the next hourly
// boundary, matching the excluded-set clear schedule (open question #3).
func nextQuotaWindow() time.Time {
	return NextHourBoundary(time.Now())
}
