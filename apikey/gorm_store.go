package apikey

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"
)

// GormStore is the production Store backed by GORM, mirroring the
// credential package's storage shape for the same sqlite-by-default database.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore wires db as the api key backing store and runs AutoMigrate.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&APIKey{}); err != nil {
		return nil, &StoreUnavailable{Cause: errors.Wrap(err, "auto-migrate api_keys table")}
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) GetByHash(ctx context.Context, hash string) (*APIKey, error) {
	var k APIKey
	err := s.db.WithContext(ctx).First(&k, "key_hash = ?", hash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StoreUnavailable{Cause: err}
	}
	return &k, nil
}

func (s *GormStore) GetById(ctx context.Context, id int) (*APIKey, error) {
	var k APIKey
	err := s.db.WithContext(ctx).First(&k, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StoreUnavailable{Cause: err}
	}
	return &k, nil
}

func (s *GormStore) List(ctx context.Context) ([]*APIKey, error) {
	var out []*APIKey
	if err := s.db.WithContext(ctx).Order("id").Find(&out).Error; err != nil {
		return nil, &StoreUnavailable{Cause: err}
	}
	return out, nil
}

func (s *GormStore) Create(ctx context.Context, k *APIKey) error {
	if err := s.db.WithContext(ctx).Create(k).Error; err != nil {
		return &StoreUnavailable{Cause: err}
	}
	return nil
}

func (s *GormStore) Update(ctx context.Context, k *APIKey) error {
	if err := s.db.WithContext(ctx).Save(k).Error; err != nil {
		return &StoreUnavailable{Cause: err}
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, id int) error {
	if err := s.db.WithContext(ctx).Delete(&APIKey{}, "id = ?", id).Error; err != nil {
		return &StoreUnavailable{Cause: err}
	}
	return nil
}

func (s *GormStore) Touch(ctx context.Context, id int, when time.Time) error {
	err := s.db.WithContext(ctx).Model(&APIKey{}).Where("id = ?", id).Updates(map[string]any{
		"use_count":    gorm.Expr("use_count + 1"),
		"last_used_at": when,
	}).Error
	if err != nil {
		return &StoreUnavailable{Cause: err}
	}
	return nil
}
