package tokens

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/keymint-app/keymint/internal/db"
	"github.com/keymint-app/keymint/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "keymint-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func seedAdmin(t *testing.T, conn *gorm.DB) uint64 {
	t.Helper()
	admin := models.Admin{Username: "admin", Password: "hashed", Active: true}
	if errCreate := conn.Create(&admin).Error; errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}
	return admin.ID
}

func TestIssue_CreatesUnconsumedTokens(t *testing.T) {
	conn := openTestDB(t)
	adminID := seedAdmin(t, conn)
	issuer := NewIssuer(conn)

	batch, err := issuer.Issue(context.Background(), adminID, decimal.RequireFromString("25"), 3)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(batch))
	}
	seen := map[string]struct{}{}
	for _, token := range batch {
		if token.Consumed {
			t.Fatalf("expected token %s to be unconsumed", token.Code)
		}
		if !token.CreditGrant.Equal(decimal.RequireFromString("25")) {
			t.Fatalf("expected grant=25, got %s", token.CreditGrant)
		}
		if _, dup := seen[token.Code]; dup {
			t.Fatalf("duplicate token code %s", token.Code)
		}
		seen[token.Code] = struct{}{}
	}
}

func TestIssue_RejectsNonPositiveGrant(t *testing.T) {
	conn := openTestDB(t)
	adminID := seedAdmin(t, conn)
	issuer := NewIssuer(conn)

	if _, err := issuer.Issue(context.Background(), adminID, decimal.Zero, 1); !errors.Is(err, ErrInvalidGrant) {
		t.Fatalf("expected ErrInvalidGrant, got %v", err)
	}
}

func TestRedeem_CreatesResellerWithGrant(t *testing.T) {
	conn := openTestDB(t)
	adminID := seedAdmin(t, conn)
	issuer := NewIssuer(conn)

	batch, err := issuer.Issue(context.Background(), adminID, decimal.RequireFromString("50"), 1)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	reseller, err := issuer.Redeem(context.Background(), batch[0].Code, "shop1", "hashed-pw")
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if !reseller.Credits.Equal(decimal.RequireFromString("50")) {
		t.Fatalf("expected credits=50, got %s", reseller.Credits)
	}

	var token models.Token
	if errFind := conn.Where("code = ?", batch[0].Code).First(&token).Error; errFind != nil {
		t.Fatalf("find token: %v", errFind)
	}
	if !token.Consumed {
		t.Fatalf("expected token consumed")
	}
	if token.RedeemedResellerID == nil || *token.RedeemedResellerID != reseller.ID {
		t.Fatalf("expected redeemed_reseller_id=%d", reseller.ID)
	}

	var entry models.CreditEntry
	if errFind := conn.Where("reseller_id = ?", reseller.ID).First(&entry).Error; errFind != nil {
		t.Fatalf("find journal entry: %v", errFind)
	}
	if entry.Kind != models.CreditEntryTokenRedeem {
		t.Fatalf("expected token_redeem journal kind, got %d", entry.Kind)
	}
}

func TestRedeem_UnknownCode(t *testing.T) {
	conn := openTestDB(t)
	issuer := NewIssuer(conn)

	if _, err := issuer.Redeem(context.Background(), "no-such-code", "shop1", "hashed"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestRedeem_SecondAttemptFails(t *testing.T) {
	conn := openTestDB(t)
	adminID := seedAdmin(t, conn)
	issuer := NewIssuer(conn)

	batch, err := issuer.Issue(context.Background(), adminID, decimal.RequireFromString("10"), 1)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, errFirst := issuer.Redeem(context.Background(), batch[0].Code, "shop1", "hashed"); errFirst != nil {
		t.Fatalf("first Redeem: %v", errFirst)
	}
	if _, errSecond := issuer.Redeem(context.Background(), batch[0].Code, "shop2", "hashed"); !errors.Is(errSecond, ErrTokenConsumed) {
		t.Fatalf("expected ErrTokenConsumed, got %v", errSecond)
	}

	var resellerCount int64
	if errCount := conn.Model(&models.Reseller{}).Count(&resellerCount).Error; errCount != nil {
		t.Fatalf("count resellers: %v", errCount)
	}
	if resellerCount != 1 {
		t.Fatalf("expected exactly 1 reseller, got %d", resellerCount)
	}
}

func TestRedeem_ConcurrentRedemptionsExactlyOneSucceeds(t *testing.T) {
	conn := openTestDB(t)
	adminID := seedAdmin(t, conn)
	issuer := NewIssuer(conn)

	batch, err := issuer.Issue(context.Background(), adminID, decimal.RequireFromString("10"), 1)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errRedeem := issuer.Redeem(context.Background(), batch[0].Code, "shop-"+string(rune('a'+n)), "hashed")
			results <- errRedeem
		}(i)
	}
	wg.Wait()
	close(results)

	successes, consumed := 0, 0
	for errRedeem := range results {
		switch {
		case errRedeem == nil:
			successes++
		case errors.Is(errRedeem, ErrTokenConsumed):
			consumed++
		default:
			t.Fatalf("unexpected redeem error: %v", errRedeem)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly 1 successful redemption, got %d", successes)
	}
	if consumed != workers-1 {
		t.Fatalf("expected %d ErrTokenConsumed, got %d", workers-1, consumed)
	}

	var resellerCount int64
	if errCount := conn.Model(&models.Reseller{}).Count(&resellerCount).Error; errCount != nil {
		t.Fatalf("count resellers: %v", errCount)
	}
	if resellerCount != 1 {
		t.Fatalf("expected exactly 1 reseller created, got %d", resellerCount)
	}
}

func TestRedeem_DuplicateUsernameRollsBack(t *testing.T) {
	conn := openTestDB(t)
	adminID := seedAdmin(t, conn)
	issuer := NewIssuer(conn)

	batch, err := issuer.Issue(context.Background(), adminID, decimal.RequireFromString("10"), 2)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, errFirst := issuer.Redeem(context.Background(), batch[0].Code, "shop1", "hashed"); errFirst != nil {
		t.Fatalf("first Redeem: %v", errFirst)
	}
	if _, errDup := issuer.Redeem(context.Background(), batch[1].Code, "shop1", "hashed"); !errors.Is(errDup, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", errDup)
	}

	var token models.Token
	if errFind := conn.Where("code = ?", batch[1].Code).First(&token).Error; errFind != nil {
		t.Fatalf("find token: %v", errFind)
	}
	if token.Consumed {
		t.Fatalf("expected second token to stay unconsumed after rollback")
	}
}

func TestDelete_ConsumedTokenRefused(t *testing.T) {
	conn := openTestDB(t)
	adminID := seedAdmin(t, conn)
	issuer := NewIssuer(conn)

	batch, err := issuer.Issue(context.Background(), adminID, decimal.RequireFromString("10"), 1)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, errRedeem := issuer.Redeem(context.Background(), batch[0].Code, "shop1", "hashed"); errRedeem != nil {
		t.Fatalf("Redeem: %v", errRedeem)
	}
	if errDelete := issuer.Delete(context.Background(), batch[0].ID); !errors.Is(errDelete, ErrTokenNotDeletable) {
		t.Fatalf("expected ErrTokenNotDeletable, got %v", errDelete)
	}
}
