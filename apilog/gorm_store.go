package apilog

import (
	"context"

	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"
)

// GormStore is the production Store backed by GORM.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore wires db as the api_logs backing store and runs AutoMigrate.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, errors.Wrap(err, "auto-migrate api_logs table")
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Append(ctx context.Context, e *Entry) error {
	return s.db.WithContext(ctx).Create(e).Error
}

func (s *GormStore) ListByRequestId(ctx context.Context, requestId string) ([]*Entry, error) {
	var out []*Entry
	err := s.db.WithContext(ctx).Where("request_id = ?", requestId).Order("id").Find(&out).Error
	return out, err
}

func (s *GormStore) ListByAPIKey(ctx context.Context, apiKeyId int, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []*Entry
	err := s.db.WithContext(ctx).Where("api_key_id = ?", apiKeyId).Order("id desc").Limit(limit).Find(&out).Error
	return out, err
}
