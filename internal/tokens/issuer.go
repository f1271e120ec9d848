// Package tokens issues and redeems single-use onboarding codes. Redemption
// consumes the token, creates the reseller, and credits the ledger in one
// transaction; concurrent redemptions of the same code cannot both succeed.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/keymint-app/keymint/internal/db"
	"github.com/keymint-app/keymint/internal/ledger"
	"github.com/keymint-app/keymint/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Sentinel errors returned by token operations.
var (
	// ErrTokenInvalid indicates an unknown token code.
	ErrTokenInvalid = errors.New("tokens: token invalid")
	// ErrTokenConsumed indicates the token was already redeemed.
	ErrTokenConsumed = errors.New("tokens: token already consumed")
	// ErrInvalidGrant indicates a non-positive credit grant.
	ErrInvalidGrant = errors.New("tokens: credit grant must be positive")
	// ErrUsernameTaken indicates the requested reseller username exists.
	ErrUsernameTaken = errors.New("tokens: username already taken")
	// ErrTokenNotDeletable indicates an attempt to delete a consumed token.
	ErrTokenNotDeletable = errors.New("tokens: consumed tokens cannot be deleted")
)

// Issuer creates and redeems onboarding tokens.
type Issuer struct {
	db    *gorm.DB
	nowFn func() time.Time
}

// NewIssuer constructs an Issuer.
func NewIssuer(conn *gorm.DB) *Issuer {
	return &Issuer{db: conn, nowFn: func() time.Time { return time.Now().UTC() }}
}

// Issue creates count unconsumed tokens, each granting creditGrant credits.
func (i *Issuer) Issue(ctx context.Context, adminID uint64, creditGrant decimal.Decimal, count int) ([]models.Token, error) {
	if creditGrant.Sign() <= 0 {
		return nil, ErrInvalidGrant
	}
	if count < 1 {
		count = 1
	}
	now := i.nowFn()
	batch := make([]models.Token, 0, count)
	for n := 0; n < count; n++ {
		batch = append(batch, models.Token{
			Code:        uuid.NewString(),
			CreditGrant: creditGrant,
			IssuedByID:  adminID,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	if errCreate := i.db.WithContext(ctx).Create(&batch).Error; errCreate != nil {
		return nil, fmt.Errorf("tokens: issue: %w", errCreate)
	}
	return batch, nil
}

// Redeem consumes the token and creates the reseller it funds. The guarded
// consumed=false update, the reseller insert, and the ledger credit commit
// together or not at all. passwordHash must already be hashed.
func (i *Issuer) Redeem(ctx context.Context, code, username, passwordHash string) (models.Reseller, error) {
	var reseller models.Reseller
	errTx := i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var token models.Token
		if errFind := tx.Where("code = ?", code).First(&token).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrTokenInvalid
			}
			return fmt.Errorf("tokens: find token: %w", errFind)
		}
		if token.Consumed {
			return ErrTokenConsumed
		}

		now := i.nowFn()
		reseller = models.Reseller{
			Username:  username,
			Password:  passwordHash,
			Credits:   decimal.Zero,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if errCreate := tx.Create(&reseller).Error; errCreate != nil {
			if db.IsUniqueViolation(errCreate) {
				return ErrUsernameTaken
			}
			return fmt.Errorf("tokens: create reseller: %w", errCreate)
		}

		// Guarded flip: exactly one concurrent redemption can match
		// consumed=false, regardless of what both read above.
		res := tx.Model(&models.Token{}).
			Where("id = ? AND consumed = ?", token.ID, false).
			Updates(map[string]any{
				"consumed":             true,
				"redeemed_reseller_id": reseller.ID,
				"redeemed_at":          now,
				"updated_at":           now,
			})
		if res.Error != nil {
			return fmt.Errorf("tokens: consume token: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrTokenConsumed
		}

		balance, errCredit := ledger.Credit(tx, reseller.ID, token.CreditGrant, models.CreditEntryTokenRedeem, token.Code, "token redemption")
		if errCredit != nil {
			return errCredit
		}
		reseller.Credits = balance
		return nil
	})
	if errTx != nil {
		return models.Reseller{}, errTx
	}
	return reseller, nil
}

// Delete removes an unconsumed token. Consumed tokens are audit trail and
// cannot be deleted.
func (i *Issuer) Delete(ctx context.Context, tokenID uint64) error {
	var token models.Token
	if errFind := i.db.WithContext(ctx).First(&token, tokenID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return ErrTokenInvalid
		}
		return fmt.Errorf("tokens: find token: %w", errFind)
	}
	if token.Consumed {
		return ErrTokenNotDeletable
	}
	res := i.db.WithContext(ctx).Where("id = ? AND consumed = ?", tokenID, false).Delete(&models.Token{})
	if res.Error != nil {
		return fmt.Errorf("tokens: delete token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTokenNotDeletable
	}
	return nil
}
