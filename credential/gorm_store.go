package credential

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"gorm.io/gorm"

	"github.com/relaygate/core/internal/logging"
)

// GormStore is the production Store backed by GORM (sqlite by default, per
// the persisted-state section of the external interfaces design).
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore wires db as the credential backing store and runs AutoMigrate
// for the Credential and ErrorCredential tables.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Credential{}, &ErrorCredential{}); err != nil {
		return nil, &StoreUnavailable{Cause: errors.Wrap(err, "auto-migrate credential tables")}
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) GetAll(ctx context.Context, vendor Vendor) ([]*Credential, error) {
	var out []*Credential
	if err := s.db.WithContext(ctx).Where("vendor = ?", vendor).Find(&out).Error; err != nil {
		return nil, &StoreUnavailable{Cause: err}
	}
	return out, nil
}

func (s *GormStore) GetActive(ctx context.Context, vendor Vendor) ([]*Credential, error) {
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

func (s *GormStore) GetRandomActive(ctx context.Context, vendor Vendor, excludeIds map[int]bool) (*Credential, error) {
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
		return nil, errors.Wrap(err, "draw random credential")
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

func (s *GormStore) GetById(ctx context.Context, id int) (*Credential, error) {
	var c Credential
	err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StoreUnavailable{Cause: err}
	}
	return &c, nil
}

func (s *GormStore) Add(ctx context.Context, c *Credential) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		if isUniqueViolation(err) {
			return &DuplicateCredential{Vendor: c.Vendor, Key: c.Name}
		}
		return &StoreUnavailable{Cause: err}
	}
	logging.From(ctx).Debug("credential added", zap.String("vendor", string(c.Vendor)), zap.Int("credential_id", c.Id))
	return nil
}

func (s *GormStore) Update(ctx context.Context, c *Credential) error {
	if err := s.db.WithContext(ctx).Save(c).Error; err != nil {
		return &StoreUnavailable{Cause: err}
	}
	return nil
}

func (s *GormStore) UpdateToken(ctx context.Context, id int, accessToken string, expiresAt time.Time) error {
	err := s.db.WithContext(ctx).Model(&Credential{}).Where("id = ?", id).Updates(map[string]any{
		"access_token": accessToken,
		"expires_at":   expiresAt,
	}).Error
	if err != nil {
		return &StoreUnavailable{Cause: err}
	}
	return nil
}

func (s *GormStore) UpdateQuota(ctx context.Context, id int, limit, used int64) error {
	err := s.db.WithContext(ctx).Model(&Credential{}).Where("id = ?", id).Updates(map[string]any{
		"quota_limit": limit,
		"quota_used":  used,
	}).Error
	if err != nil {
		return &StoreUnavailable{Cause: err}
	}
	return nil
}

func (s *GormStore) UpdateRateLimits(ctx context.Context, id int, rl RateLimits) error {
	err := s.db.WithContext(ctx).Model(&Credential{}).Where("id = ?", id).Update("rate_limits", rl).Error
	if err != nil {
		return &StoreUnavailable{Cause: err}
	}
	return nil
}

func (s *GormStore) IncrementUseCount(ctx context.Context, id int) error {
	now := time.Now()
	err := s.db.WithContext(ctx).Model(&Credential{}).Where("id = ?", id).Updates(map[string]any{
		"use_count":    gorm.Expr("use_count + 1"),
		"last_used_at": now,
	}).Error
	if err != nil {
		return &StoreUnavailable{Cause: err}
	}
	return nil
}

func (s *GormStore) IncrementErrorCount(ctx context.Context, id int, message string) error {
	err := s.db.WithContext(ctx).Model(&Credential{}).Where("id = ?", id).Updates(map[string]any{
		"error_count": gorm.Expr("error_count + 1"),
		"last_error":  message,
	}).Error
	if err != nil {
		return &StoreUnavailable{Cause: err}
	}

	c, err := s.GetById(ctx, id)
	if err != nil {
		return err
	}
	if c.ErrorCount >= errorQuarantineThreshold() {
		logging.From(ctx).Warn("credential error count reached quarantine threshold",
			zap.Int("credential_id", id), zap.Int("error_count", c.ErrorCount))
		return s.MoveToError(ctx, id, message)
	}
	return nil
}

func (s *GormStore) MarkQuotaExhausted(ctx context.Context, id int, until *time.Time) error {
	err := s.db.WithContext(ctx).Model(&Credential{}).Where("id = ?", id).Update("quota_exhausted_until", until).Error
	if err != nil {
		return &StoreUnavailable{Cause: err}
	}
	logging.From(ctx).Debug("credential quota exhausted", zap.Int("credential_id", id))
	return nil
}

func (s *GormStore) MoveToError(ctx context.Context, id int, reason string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c Credential
		if err := tx.First(&c, "id = ?", id).Error; err != nil {
			return err
		}

		ec := &ErrorCredential{
			CredentialId:  c.Id,
			Vendor:        c.Vendor,
			Name:          c.Name,
			Reason:        reason,
			RefreshToken:  c.RefreshToken,
			ClientId:      c.ClientId,
			ClientSecret:  c.ClientSecret,
			ProjectId:     c.ProjectId,
			Region:        c.Region,
			APIBaseURL:    c.APIBaseURL,
			QuarantinedAt: time.Now(),
		}
		if err := tx.Create(ec).Error; err != nil {
			return err
		}

		return tx.Model(&Credential{}).Where("id = ?", id).Updates(map[string]any{
			"is_active":  false,
			"last_error": reason,
		}).Error
	})
	if err == nil {
		logging.From(ctx).Warn("credential moved to error", zap.Int("credential_id", id), zap.String("reason", reason))
	}
	return err
}

func (s *GormStore) RestoreFromError(ctx context.Context, errorId int, newRefreshToken string) (*Credential, error) {
	var restored Credential
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ec ErrorCredential
		if err := tx.First(&ec, "id = ?", errorId).Error; err != nil {
			return err
		}

		updates := map[string]any{
			"is_active":   true,
			"error_count": 0,
			"last_error":  "",
		}
		if newRefreshToken != "" {
			updates["refresh_token"] = newRefreshToken
		}
		if err := tx.Model(&Credential{}).Where("id = ?", ec.CredentialId).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.First(&restored, "id = ?", ec.CredentialId).Error; err != nil {
			return err
		}
		return tx.Delete(&ErrorCredential{}, "id = ?", errorId).Error
	})
	if err != nil {
		return nil, &StoreUnavailable{Cause: err}
	}
	logging.From(ctx).Debug("credential restored from error", zap.Int("credential_id", restored.Id))
	return &restored, nil
}

func (s *GormStore) Delete(ctx context.Context, id int) error {
	if err := s.db.WithContext(ctx).Delete(&Credential{}, "id = ?", id).Error; err != nil {
		return &StoreUnavailable{Cause: err}
	}
	logging.From(ctx).Debug("credential deleted", zap.Int("credential_id", id))
	return nil
}

func (s *GormStore) ListErrors(ctx context.Context, vendor Vendor) ([]*ErrorCredential, error) {
	var out []*ErrorCredential
	if err := s.db.WithContext(ctx).Where("vendor = ?", vendor).Find(&out).Error; err != nil {
		return nil, &StoreUnavailable{Cause: err}
	}
	return out, nil
}

// errorQuarantineThreshold is overridable in tests; production wiring sets it
// from internal/config.ErrorQuarantineThreshold at process start.
var quarantineThreshold = 5

func errorQuarantineThreshold() int { return quarantineThreshold }

// SetQuarantineThreshold overrides the consecutive-error quarantine threshold.
func SetQuarantineThreshold(n int) {
	if n > 0 {
		quarantineThreshold = n
	}
}

func isUniqueViolation(err error) bool {
	// sqlite's driver reports unique constraint violations in the error text;
	// there's no portable sentinel across GORM dialects.
	msg := err.Error()
	return contains(msg, "UNIQUE constraint") || contains(msg, "duplicate key")
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
