package apikey

import (
	"context"
	"sync"
	"time"
)

// MemStore is an in-memory Store used by tests and by local-development
// profiles where a sqlite file is undesirable.
type MemStore struct {
	mu     sync.Mutex
	nextId int
	keys   map[int]*APIKey
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty in-memory api key store.
func NewMemStore() *MemStore {
	return &MemStore{keys: make(map[int]*APIKey)}
}

func (s *MemStore) GetByHash(_ context.Context, hash string) (*APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.KeyHash == hash {
			cp := *k
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) GetById(_ context.Context, id int) (*APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *k
	return &cp, nil
}

func (s *MemStore) List(_ context.Context) ([]*APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*APIKey, 0, len(s.keys))
	for _, k := range s.keys {
		cp := *k
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemStore) Create(_ context.Context, k *APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextId++
	k.Id = s.nextId
	now := time.Now()
	k.CreatedAt, k.UpdatedAt = now, now
	cp := *k
	s.keys[k.Id] = &cp
	return nil
}

func (s *MemStore) Update(_ context.Context, k *APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[k.Id]; !ok {
		return ErrNotFound
	}
	k.UpdatedAt = time.Now()
	cp := *k
	s.keys[k.Id] = &cp
	return nil
}

func (s *MemStore) Delete(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, id)
	return nil
}

func (s *MemStore) Touch(_ context.Context, id int, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok {
		return ErrNotFound
	}
	k.UseCount++
	k.LastUsedAt = &when
	k.UpdatedAt = when
	return nil
}
