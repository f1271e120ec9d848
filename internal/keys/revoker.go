package keys

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/keymint-app/keymint/internal/models"
	"github.com/keymint-app/keymint/internal/push"
	"gorm.io/gorm"
)

// Revoker permanently invalidates keys. Revocation never refunds credit.
type Revoker struct {
	db    *gorm.DB
	bus   *push.Bus
	nowFn func() time.Time
}

// NewRevoker constructs a Revoker publishing revocation events on bus.
func NewRevoker(conn *gorm.DB, bus *push.Bus) *Revoker {
	return &Revoker{db: conn, bus: bus, nowFn: func() time.Time { return time.Now().UTC() }}
}

// Revoke sets revoked=true. Revoking an already-revoked key is a no-op
// success; the event is only published on the actual transition.
func (r *Revoker) Revoke(ctx context.Context, keyID uint64, actor Actor) (models.Key, error) {
	var key models.Key
	if errFind := r.db.WithContext(ctx).First(&key, keyID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.Key{}, ErrKeyNotFound
		}
		return models.Key{}, fmt.Errorf("keys: find key: %w", errFind)
	}
	if actor == nil || !actor.CanRevokeKey(&key) {
		return models.Key{}, ErrNotAuthorized
	}
	if key.Revoked {
		return key, nil
	}

	now := r.nowFn()
	res := r.db.WithContext(ctx).Model(&models.Key{}).
		Where("id = ? AND revoked = ?", keyID, false).
		Updates(map[string]any{
			"revoked":    true,
			"revoked_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return models.Key{}, fmt.Errorf("keys: revoke: %w", res.Error)
	}
	key.Revoked = true
	key.RevokedAt = &now
	key.UpdatedAt = now

	// A concurrent revoke may have won the guarded update; the key is
	// revoked either way, and the loser skips the duplicate event.
	if res.RowsAffected > 0 && r.bus != nil {
		r.bus.Publish(key.ResellerID, push.KeyRevoked(key.ID))
	}
	return key, nil
}
