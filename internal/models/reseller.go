package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reseller represents a reseller account holding prepaid credits.
type Reseller struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	Credits decimal.Decimal `gorm:"type:decimal(20,10);not null;default:0"` // Prepaid credit balance, never negative.

	RateLimit int `gorm:"not null;default:0"` // Key generation rate limit per second, 0 inherits settings.

	Active bool `gorm:"not null;default:true"` // Whether the reseller can sign in.

	Keys []Key `gorm:"foreignKey:ResellerID"` // Keys owned by this reseller.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
