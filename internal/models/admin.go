package models

import (
	"time"

	"gorm.io/datatypes"
)

// Admin represents an administrator account.
type Admin struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	Permissions  datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Granted permission keys.
	IsSuperAdmin bool           `gorm:"not null;default:false"`           // Whether all permissions are implied.

	TOTPSecret string `gorm:"type:text"` // TOTP secret for MFA.

	Active bool `gorm:"not null;default:true"` // Whether the admin can sign in.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
