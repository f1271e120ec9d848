package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Game identifies the game a license key unlocks.
type Game string

// Game constants define the supported games.
const (
	// GamePUBGMobile targets PUBG Mobile clients.
	GamePUBGMobile Game = "PUBG_MOBILE"
	// GameLIOS targets LIOS clients.
	GameLIOS Game = "LIOS"
	// GameFreeFire targets Free Fire clients.
	GameFreeFire Game = "FREE_FIRE"
)

// Valid reports whether the game value is one of the supported games.
func (g Game) Valid() bool {
	switch g {
	case GamePUBGMobile, GameLIOS, GameFreeFire:
		return true
	default:
		return false
	}
}

// Key represents a sold license key and its device binding budget.
type Key struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	KeyString string `gorm:"type:text;not null;uniqueIndex"` // Globally unique license key string.
	Game      Game   `gorm:"type:text;not null;index"`       // Target game.

	DeviceLimit int       `gorm:"not null"` // Maximum distinct devices that may bind.
	ExpiresAt   time.Time `gorm:"not null"` // Expiry timestamp.

	CreditCost decimal.Decimal `gorm:"type:decimal(20,10);not null"` // Credits paid for this key.

	Revoked   bool       `gorm:"not null;default:false"` // Whether the key is permanently invalidated.
	RevokedAt *time.Time // Revocation time, if revoked.

	ResellerID uint64    `gorm:"not null;index"`        // Owning reseller ID.
	Reseller   *Reseller `gorm:"foreignKey:ResellerID"` // Owning reseller record.

	BatchID string `gorm:"type:text;not null;index"` // Shared reference for keys created in one generate call.

	Devices []Device `gorm:"foreignKey:KeyID"` // Devices bound to this key.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
