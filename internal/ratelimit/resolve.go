package ratelimit

import (
	"context"
	"errors"

	"github.com/keymint-app/keymint/internal/models"
	"gorm.io/gorm"
)

// ResolveGenerateLimit resolves the effective key generation rate limit for a
// reseller. A positive per-reseller override wins, otherwise the settings
// default applies. Zero means unlimited.
func ResolveGenerateLimit(ctx context.Context, db *gorm.DB, resellerID uint64) (int, error) {
	if db == nil || resellerID == 0 {
		return 0, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var row struct {
		RateLimit int
	}
	if errFind := db.WithContext(ctx).
		Model(&models.Reseller{}).
		Select("rate_limit").
		Where("id = ?", resellerID).
		Take(&row).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return DefaultSettingsLimit(), nil
		}
		return 0, errFind
	}
	if row.RateLimit > 0 {
		return row.RateLimit, nil
	}
	return DefaultSettingsLimit(), nil
}

// ResolveVerifyLimit returns the per-device verify rate limit from settings.
func ResolveVerifyLimit() int {
	return VerifySettingsLimit()
}
