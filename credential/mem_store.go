package credential

import (
	"context"
	"crypto/rand"
	"math/big"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
)

// MemStore is an in-memory Store used by tests and by the Warp/local
// development profile where a sqlite file is undesirable.
type MemStore struct {
	mu        sync.Mutex
	nextId    int
	nextErrId int
	creds     map[int]*Credential
	errors    map[int]*ErrorCredential
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty in-memory credential store.
func NewMemStore() *MemStore {
	return &MemStore{
		creds:  make(map[int]*Credential),
		errors: make(map[int]*ErrorCredential),
	}
}

func (s *MemStore) GetAll(_ context.Context, vendor Vendor) ([]*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Credential
	for _, c := range s.creds {
		if c.Vendor == vendor {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemStore) GetActive(ctx context.Context, vendor Vendor) ([]*Credential, error) {
	all, err := s.GetAll(ctx, vendor)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	active := make([]*Credential, 0, len(all))
	for _, c := range all {
		if c.Active(now) {
			active = append(active, c)
		}
	}
	return active, nil
}

func (s *MemStore) GetRandomActive(ctx context.Context, vendor Vendor, excludeIds map[int]bool) (*Credential, error) {
	active, err := s.GetActive(ctx, vendor)
	if err != nil {
		return nil, err
	}
	candidates := make([]*Credential, 0, len(active))
	totalWeight := 0
	for _, c := range active {
		if excludeIds[c.Id] {
			continue
		}
		w := c.Weight
		if w <= 0 {
			w = 1
		}
		totalWeight += w
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	pick, err := rand.Int(rand.Reader, big.NewInt(int64(totalWeight)))
	if err != nil {
		return nil, err
	}
	threshold := pick.Int64()
	var cursor int64
	for _, c := range candidates {
		w := int64(c.Weight)
		if w <= 0 {
			w = 1
		}
		cursor += w
		if threshold < cursor {
			return c, nil
		}
	}
	return candidates[len(candidates)-1], nil
}

func (s *MemStore) GetById(_ context.Context, id int) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemStore) Add(_ context.Context, c *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.creds {
		if existing.Vendor == c.Vendor && existing.Name == c.Name {
			return &DuplicateCredential{Vendor: c.Vendor, Key: c.Name}
		}
	}
	s.nextId++
	c.Id = s.nextId
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.Weight <= 0 {
		c.Weight = 1
	}
	cp := *c
	s.creds[c.Id] = &cp
	return nil
}

func (s *MemStore) Update(_ context.Context, c *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.creds[c.Id]; !ok {
		return ErrNotFound
	}
	c.UpdatedAt = time.Now()
	cp := *c
	s.creds[c.Id] = &cp
	return nil
}

func (s *MemStore) mutate(id int, fn func(c *Credential)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[id]
	if !ok {
		return ErrNotFound
	}
	fn(c)
	c.UpdatedAt = time.Now()
	return nil
}

func (s *MemStore) UpdateToken(_ context.Context, id int, accessToken string, expiresAt time.Time) error {
	return s.mutate(id, func(c *Credential) {
		c.AccessToken = accessToken
		c.ExpiresAt = &expiresAt
	})
}

func (s *MemStore) UpdateQuota(_ context.Context, id int, limit, used int64) error {
	return s.mutate(id, func(c *Credential) {
		c.QuotaLimit = limit
		c.QuotaUsed = used
	})
}

func (s *MemStore) UpdateRateLimits(_ context.Context, id int, rl RateLimits) error {
	return s.mutate(id, func(c *Credential) { c.RateLimits = rl })
}

func (s *MemStore) IncrementUseCount(_ context.Context, id int) error {
	now := time.Now()
	return s.mutate(id, func(c *Credential) {
		c.UseCount++
		c.LastUsedAt = &now
	})
}

func (s *MemStore) IncrementErrorCount(ctx context.Context, id int, message string) error {
	var crossed bool
	err := s.mutate(id, func(c *Credential) {
		c.ErrorCount++
		c.LastError = message
		crossed = c.ErrorCount >= errorQuarantineThreshold()
	})
	if err != nil {
		return err
	}
	if crossed {
		return s.MoveToError(ctx, id, message)
	}
	return nil
}

func (s *MemStore) MarkQuotaExhausted(_ context.Context, id int, until *time.Time) error {
	return s.mutate(id, func(c *Credential) { c.QuotaExhaustedUntil = until })
}

func (s *MemStore) MoveToError(_ context.Context, id int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[id]
	if !ok {
		return ErrNotFound
	}
	s.nextErrId++
	s.errors[s.nextErrId] = &ErrorCredential{
		Id: s.nextErrId, CredentialId: c.Id, Vendor: c.Vendor, Name: c.Name,
		Reason: reason, RefreshToken: c.RefreshToken, ClientId: c.ClientId,
		ClientSecret: c.ClientSecret, ProjectId: c.ProjectId, Region: c.Region,
		APIBaseURL: c.APIBaseURL, QuarantinedAt: time.Now(),
	}
	c.IsActive = false
	c.LastError = reason
	return nil
}

func (s *MemStore) RestoreFromError(_ context.Context, errorId int, newRefreshToken string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ec, ok := s.errors[errorId]
	if !ok {
		return nil, errors.New("error credential not found")
	}
	c, ok := s.creds[ec.CredentialId]
	if !ok {
		return nil, ErrNotFound
	}
	c.IsActive = true
	c.ErrorCount = 0
	c.LastError = ""
	if newRefreshToken != "" {
		c.RefreshToken = newRefreshToken
	}
	delete(s.errors, errorId)
	cp := *c
	return &cp, nil
}

func (s *MemStore) Delete(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, id)
	return nil
}

func (s *MemStore) ListErrors(_ context.Context, vendor Vendor) ([]*ErrorCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ErrorCredential
	for _, ec := range s.errors {
		if ec.Vendor == vendor {
			cp := *ec
			out = append(out, &cp)
		}
	}
	return out, nil
}
