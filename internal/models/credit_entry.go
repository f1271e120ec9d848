package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreditEntryKind classifies a credit journal entry.
type CreditEntryKind int

// CreditEntryKind constants define journal entry kinds.
const (
	// CreditEntryTokenRedeem records the grant from redeeming a token.
	CreditEntryTokenRedeem CreditEntryKind = 1
	// CreditEntryKeyPurchase records the debit from generating a key batch.
	CreditEntryKeyPurchase CreditEntryKind = 2
	// CreditEntryAdminAdjust records a manual admin balance adjustment.
	CreditEntryAdminAdjust CreditEntryKind = 3
)

// CreditEntry is an append-only journal row written with every balance change.
type CreditEntry struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ResellerID uint64          `gorm:"not null;index"` // Affected reseller ID.
	Kind       CreditEntryKind `gorm:"not null"`       // Entry kind.

	Amount       decimal.Decimal `gorm:"type:decimal(20,10);not null"` // Signed amount applied to the balance.
	BalanceAfter decimal.Decimal `gorm:"type:decimal(20,10);not null"` // Balance after the change.

	RefID string `gorm:"type:text;not null;index"` // Token code, batch ID, or adjustment reference.
	Note  string `gorm:"type:text"`                // Optional human note.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
