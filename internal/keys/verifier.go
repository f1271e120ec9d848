package keys

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/keymint-app/keymint/internal/db"
	"github.com/keymint-app/keymint/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VerifyResult carries key metadata returned on successful verification.
type VerifyResult struct {
	Key            models.Key
	SlotsRemaining int
	AlreadyBound   bool
}

// Verifier authorizes client devices against keys.
type Verifier struct {
	db    *gorm.DB
	nowFn func() time.Time
}

// NewVerifier constructs a Verifier.
func NewVerifier(conn *gorm.DB) *Verifier {
	return &Verifier{db: conn, nowFn: func() time.Time { return time.Now().UTC() }}
}

// Verify authorizes the device against the key. Re-verifying an already
// bound device always succeeds without consuming a slot. The slot check and
// insert run atomically per key: the key row is locked on Postgres, and the
// single writer connection serializes SQLite. The composite unique index on
// (key_id, device_id) backs the idempotency row against races.
func (v *Verifier) Verify(ctx context.Context, keyString, deviceID string) (VerifyResult, error) {
	var result VerifyResult
	errTx := v.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if !db.IsSQLite(tx) {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var key models.Key
		if errFind := q.Where("key_string = ?", keyString).First(&key).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrKeyNotFound
			}
			return fmt.Errorf("keys: find key: %w", errFind)
		}
		if key.Revoked {
			return ErrKeyRevoked
		}
		now := v.nowFn()
		if now.After(key.ExpiresAt) {
			return ErrKeyExpired
		}

		var bound int64
		if errCount := tx.Model(&models.Device{}).Where("key_id = ?", key.ID).Count(&bound).Error; errCount != nil {
			return fmt.Errorf("keys: count devices: %w", errCount)
		}

		var existing models.Device
		errExisting := tx.Where("key_id = ? AND device_id = ?", key.ID, deviceID).First(&existing).Error
		if errExisting == nil {
			result = VerifyResult{
				Key:            key,
				SlotsRemaining: key.DeviceLimit - int(bound),
				AlreadyBound:   true,
			}
			return nil
		}
		if !errors.Is(errExisting, gorm.ErrRecordNotFound) {
			return fmt.Errorf("keys: find device: %w", errExisting)
		}

		if int(bound) >= key.DeviceLimit {
			return ErrDeviceLimitExceeded
		}

		device := models.Device{
			KeyID:    key.ID,
			DeviceID: deviceID,
			BoundAt:  now,
		}
		if errCreate := tx.Create(&device).Error; errCreate != nil {
			if db.IsUniqueViolation(errCreate) {
				// Lost the insert race to the same device: the binding
				// exists, so this call is an idempotent success.
				result = VerifyResult{
					Key:            key,
					SlotsRemaining: key.DeviceLimit - int(bound),
					AlreadyBound:   true,
				}
				return nil
			}
			return fmt.Errorf("keys: bind device: %w", errCreate)
		}
		result = VerifyResult{
			Key:            key,
			SlotsRemaining: key.DeviceLimit - int(bound) - 1,
			AlreadyBound:   false,
		}
		return nil
	})
	if errTx != nil {
		return VerifyResult{}, errTx
	}
	return result, nil
}

// BoundDevices returns the devices bound to a key.
func (v *Verifier) BoundDevices(ctx context.Context, keyID uint64) ([]models.Device, error) {
	var devices []models.Device
	if errFind := v.db.WithContext(ctx).Where("key_id = ?", keyID).Order("bound_at ASC").Find(&devices).Error; errFind != nil {
		return nil, fmt.Errorf("keys: list devices: %w", errFind)
	}
	return devices, nil
}
