package models

import "time"

// Device records one device bound to one key. Rows are never updated or deleted.
type Device struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	KeyID    uint64 `gorm:"not null;uniqueIndex:idx_devices_key_device"`           // Bound key ID.
	DeviceID string `gorm:"type:text;not null;uniqueIndex:idx_devices_key_device"` // Client device identifier.

	BoundAt time.Time `gorm:"not null"` // First successful verification time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
