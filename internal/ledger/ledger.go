// Package ledger owns reseller credit balances. Every balance change runs as
// a guarded single-row update and writes a journal entry in the same
// transaction, so the balance can never go negative and the journal always
// sums to the balance.
package ledger

import (
	"errors"
	"fmt"

	"github.com/keymint-app/keymint/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Sentinel errors returned by ledger operations.
var (
	// ErrInsufficientCredit indicates a debit larger than the current balance.
	ErrInsufficientCredit = errors.New("ledger: insufficient credit")
	// ErrResellerNotFound indicates the reseller row does not exist.
	ErrResellerNotFound = errors.New("ledger: reseller not found")
	// ErrInvalidAmount indicates a non-positive debit or credit amount.
	ErrInvalidAmount = errors.New("ledger: amount must be positive")
)

// Debit atomically subtracts amount from the reseller's balance. The guarded
// update only matches when the balance covers the amount, so concurrent
// debits cannot both pass a check that only one can satisfy. Returns the
// balance after the debit. Callers compose this inside their own transaction
// so a later failure rolls the debit back.
func Debit(tx *gorm.DB, resellerID uint64, amount decimal.Decimal, kind models.CreditEntryKind, refID, note string) (decimal.Decimal, error) {
	if tx == nil {
		return decimal.Zero, fmt.Errorf("ledger: nil tx")
	}
	if amount.Sign() <= 0 {
		return decimal.Zero, ErrInvalidAmount
	}

	res := tx.Model(&models.Reseller{}).
		Where("id = ? AND credits >= ?", resellerID, amount).
		Update("credits", gorm.Expr("credits - ?", amount))
	if res.Error != nil {
		return decimal.Zero, fmt.Errorf("ledger: debit: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if errCount := tx.Model(&models.Reseller{}).Where("id = ?", resellerID).Count(&count).Error; errCount != nil {
			return decimal.Zero, fmt.Errorf("ledger: debit lookup: %w", errCount)
		}
		if count == 0 {
			return decimal.Zero, ErrResellerNotFound
		}
		return decimal.Zero, ErrInsufficientCredit
	}

	balance, errBalance := balanceTx(tx, resellerID)
	if errBalance != nil {
		return decimal.Zero, errBalance
	}
	if errJournal := journal(tx, resellerID, kind, amount.Neg(), balance, refID, note); errJournal != nil {
		return decimal.Zero, errJournal
	}
	return balance, nil
}

// Credit atomically adds amount to the reseller's balance and returns the
// balance after the credit.
func Credit(tx *gorm.DB, resellerID uint64, amount decimal.Decimal, kind models.CreditEntryKind, refID, note string) (decimal.Decimal, error) {
	if tx == nil {
		return decimal.Zero, fmt.Errorf("ledger: nil tx")
	}
	if amount.Sign() <= 0 {
		return decimal.Zero, ErrInvalidAmount
	}

	res := tx.Model(&models.Reseller{}).
		Where("id = ?", resellerID).
		Update("credits", gorm.Expr("credits + ?", amount))
	if res.Error != nil {
		return decimal.Zero, fmt.Errorf("ledger: credit: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return decimal.Zero, ErrResellerNotFound
	}

	balance, errBalance := balanceTx(tx, resellerID)
	if errBalance != nil {
		return decimal.Zero, errBalance
	}
	if errJournal := journal(tx, resellerID, kind, amount, balance, refID, note); errJournal != nil {
		return decimal.Zero, errJournal
	}
	return balance, nil
}

// Balance returns the reseller's current credit balance.
func Balance(conn *gorm.DB, resellerID uint64) (decimal.Decimal, error) {
	if conn == nil {
		return decimal.Zero, fmt.Errorf("ledger: nil connection")
	}
	return balanceTx(conn, resellerID)
}

func balanceTx(tx *gorm.DB, resellerID uint64) (decimal.Decimal, error) {
	var reseller models.Reseller
	if errFind := tx.Select("credits").First(&reseller, resellerID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return decimal.Zero, ErrResellerNotFound
		}
		return decimal.Zero, fmt.Errorf("ledger: balance: %w", errFind)
	}
	return reseller.Credits, nil
}

func journal(tx *gorm.DB, resellerID uint64, kind models.CreditEntryKind, amount, balanceAfter decimal.Decimal, refID, note string) error {
	entry := models.CreditEntry{
		ResellerID:   resellerID,
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		RefID:        refID,
		Note:         note,
	}
	if errCreate := tx.Create(&entry).Error; errCreate != nil {
		return fmt.Errorf("ledger: journal: %w", errCreate)
	}
	return nil
}
