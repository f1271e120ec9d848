package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Token is a single-use onboarding code granting initial credit to a new reseller.
type Token struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Code        string          `gorm:"type:text;not null;uniqueIndex"` // Unique redemption code.
	CreditGrant decimal.Decimal `gorm:"type:decimal(20,10);not null"`   // Credits granted on redemption.

	Consumed bool `gorm:"not null;default:false"` // Whether the token has been redeemed.

	IssuedByID uint64 `gorm:"not null;index"`    // Issuing admin ID.
	IssuedBy   *Admin `gorm:"foreignKey:IssuedByID"` // Issuing admin record.

	RedeemedResellerID *uint64    `gorm:"index"` // Reseller created by redemption, if redeemed.
	RedeemedAt         *time.Time // Redemption time, if redeemed.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
