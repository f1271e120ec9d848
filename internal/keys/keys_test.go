package keys

import (
	"path/filepath"
	"testing"
	"time"

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

func seedReseller(t *testing.T, conn *gorm.DB, credits string) uint64 {
	t.Helper()
	reseller := models.Reseller{
		Username: "reseller",
		Password: "hashed",
		Credits:  decimal.RequireFromString(credits),
		Active:   true,
	}
	if errCreate := conn.Create(&reseller).Error; errCreate != nil {
		t.Fatalf("create reseller: %v", errCreate)
	}
	return reseller.ID
}

func seedKey(t *testing.T, conn *gorm.DB, resellerID uint64, keyString string, deviceLimit int, expiresAt time.Time) models.Key {
	t.Helper()
	key := models.Key{
		KeyString:   keyString,
		Game:        models.GamePUBGMobile,
		DeviceLimit: deviceLimit,
		ExpiresAt:   expiresAt,
		CreditCost:  decimal.RequireFromString("3"),
		ResellerID:  resellerID,
		BatchID:     "batch-test",
	}
	if errCreate := conn.Create(&key).Error; errCreate != nil {
		t.Fatalf("create key: %v", errCreate)
	}
	return key
}
