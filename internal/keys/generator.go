// Package keys owns license key generation, device-binding verification, and
// revocation. Key batches are all-or-nothing: the credit debit and every key
// insert share one transaction, so a failure after the debit reverses it.
package keys

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/keymint-app/keymint/internal/db"
	"github.com/keymint-app/keymint/internal/ledger"
	"github.com/keymint-app/keymint/internal/models"
	"github.com/keymint-app/keymint/internal/push"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// keyStringRetries bounds regeneration attempts on a suffix collision.
const keyStringRetries = 5

// GenerateParams holds inputs for one key batch.
type GenerateParams struct {
	ResellerID  uint64
	Game        models.Game
	DeviceLimit int
	Days        int
	Count       int
	// CustomKey, when set, becomes the key string of the first key in the batch.
	CustomKey string
}

// Generator produces key batches against a reseller's credit balance.
type Generator struct {
	db    *gorm.DB
	bus   *push.Bus
	nowFn func() time.Time
}

// NewGenerator constructs a Generator publishing balance changes on bus.
func NewGenerator(conn *gorm.DB, bus *push.Bus) *Generator {
	return &Generator{db: conn, bus: bus, nowFn: func() time.Time { return time.Now().UTC() }}
}

// Generate debits tierCost(days)*count and creates count keys. Validation
// happens before any side effect; everything after the debit shares its
// transaction, so no partial batch can persist.
func (g *Generator) Generate(ctx context.Context, p GenerateParams) ([]models.Key, error) {
	if !p.Game.Valid() {
		return nil, ErrInvalidGame
	}
	if p.Count < 1 {
		return nil, ErrInvalidCount
	}
	if p.DeviceLimit < 1 {
		return nil, ErrInvalidDeviceLimit
	}
	cost, errTier := TierCost(p.Days)
	if errTier != nil {
		return nil, errTier
	}
	totalCost := cost.Mul(decimal.NewFromInt(int64(p.Count)))

	now := g.nowFn()
	expiresAt := now.AddDate(0, 0, p.Days)
	batchID := uuid.NewString()
	customKey := strings.TrimSpace(p.CustomKey)

	var (
		created      []models.Key
		balanceAfter decimal.Decimal
	)
	errTx := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balance, errDebit := ledger.Debit(tx, p.ResellerID, totalCost, models.CreditEntryKeyPurchase, batchID,
			fmt.Sprintf("%d x %d-day %s", p.Count, p.Days, p.Game))
		if errDebit != nil {
			return errDebit
		}
		balanceAfter = balance

		batch := make([]models.Key, 0, p.Count)
		for idx := 0; idx < p.Count; idx++ {
			keyString := ""
			if idx == 0 && customKey != "" {
				taken, errTaken := keyStringExists(tx, customKey)
				if errTaken != nil {
					return errTaken
				}
				if taken {
					return ErrDuplicateKey
				}
				keyString = customKey
			} else {
				generated, errGen := freshKeyString(tx, p.Game)
				if errGen != nil {
					return errGen
				}
				keyString = generated
			}
			batch = append(batch, models.Key{
				KeyString:   keyString,
				Game:        p.Game,
				DeviceLimit: p.DeviceLimit,
				ExpiresAt:   expiresAt,
				CreditCost:  cost,
				ResellerID:  p.ResellerID,
				BatchID:     batchID,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
		if errCreate := tx.Create(&batch).Error; errCreate != nil {
			// The unique index on key_string is the hard guard against a
			// lost generation race; the whole batch rolls back either way.
			if db.IsUniqueViolation(errCreate) {
				return ErrDuplicateKey
			}
			return fmt.Errorf("keys: create batch: %w", errCreate)
		}
		created = batch
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}

	if g.bus != nil {
		g.bus.Publish(p.ResellerID, push.CreditBalanceChanged(balanceAfter))
	}
	return created, nil
}

// keyStringExists reports whether a key string is already taken.
func keyStringExists(tx *gorm.DB, keyString string) (bool, error) {
	var count int64
	if errCount := tx.Model(&models.Key{}).Where("key_string = ?", keyString).Count(&count).Error; errCount != nil {
		return false, fmt.Errorf("keys: check key string: %w", errCount)
	}
	return count > 0, nil
}

// freshKeyString generates a key string not currently in use, retrying a
// bounded number of times on collision.
func freshKeyString(tx *gorm.DB, game models.Game) (string, error) {
	for attempt := 0; attempt < keyStringRetries; attempt++ {
		candidate, errGen := newKeyString(game)
		if errGen != nil {
			return "", errGen
		}
		taken, errTaken := keyStringExists(tx, candidate)
		if errTaken != nil {
			return "", errTaken
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("keys: exhausted key string attempts")
}
