package db

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/keymint-app/keymint/internal/models"
	internalsettings "github.com/keymint-app/keymint/internal/settings"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite:
		return migrateSQLite(conn)
	case DialectPostgres, "":
		return migratePostgres(conn)
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}
}

// migratedModels lists every model in AutoMigrate order.
func migratedModels() []any {
	return []any{
		&models.Admin{},
		&models.Reseller{},
		&models.Token{},
		&models.Key{},
		&models.Device{},
		&models.CreditEntry{},
		&models.Announcement{},
		&models.Setting{},
	}
}

// migratePostgres applies PostgreSQL-specific schema updates and indexes.
func migratePostgres(conn *gorm.DB) error {
	if errAutoMigrate := conn.AutoMigrate(migratedModels()...); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if errCreditsGuard := conn.Exec(`
		ALTER TABLE resellers
		ADD CONSTRAINT chk_resellers_credits_non_negative CHECK (credits >= 0)
	`).Error; errCreditsGuard != nil && !isDuplicateObject(errCreditsGuard) {
		return fmt.Errorf("db: add credits check: %w", errCreditsGuard)
	}
	if errActiveKeysIdx := conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_keys_reseller_active
		ON keys (reseller_id, expires_at)
		WHERE revoked = false
	`).Error; errActiveKeysIdx != nil {
		return fmt.Errorf("db: create active keys index: %w", errActiveKeysIdx)
	}
	if errSuperSeed := conn.Exec(`
		UPDATE admins
		SET is_super_admin = true
		WHERE id = (
			SELECT id FROM admins ORDER BY created_at ASC, id ASC LIMIT 1
		)
		AND NOT EXISTS (SELECT 1 FROM admins WHERE is_super_admin = true)
	`).Error; errSuperSeed != nil {
		return fmt.Errorf("db: seed admin super flag: %w", errSuperSeed)
	}

	return seedSettings(conn)
}

// migrateSQLite applies SQLite schema updates.
func migrateSQLite(conn *gorm.DB) error {
	if errAutoMigrate := conn.AutoMigrate(migratedModels()...); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errSuperSeed := conn.Exec(`
		UPDATE admins
		SET is_super_admin = true
		WHERE id = (
			SELECT id FROM admins ORDER BY created_at ASC, id ASC LIMIT 1
		)
		AND NOT EXISTS (SELECT 1 FROM admins WHERE is_super_admin = true)
	`).Error; errSuperSeed != nil {
		return fmt.Errorf("db: seed admin super flag: %w", errSuperSeed)
	}
	return seedSettings(conn)
}

// seedSettings inserts default settings rows when absent.
func seedSettings(conn *gorm.DB) error {
	defaults := []struct {
		key   string
		value any
	}{
		{internalsettings.SiteNameKey, internalsettings.DefaultSiteName},
		{internalsettings.RateLimitKey, internalsettings.DefaultRateLimit},
		{internalsettings.VerifyRateLimitKey, internalsettings.DefaultVerifyRateLimit},
	}
	for _, def := range defaults {
		var count int64
		if errCount := conn.Model(&models.Setting{}).Where("key = ?", def.key).Count(&count).Error; errCount != nil {
			return fmt.Errorf("db: check setting %s: %w", def.key, errCount)
		}
		if count > 0 {
			continue
		}
		payload, errMarshal := json.Marshal(def.value)
		if errMarshal != nil {
			return fmt.Errorf("db: marshal setting %s: %w", def.key, errMarshal)
		}
		setting := models.Setting{Key: def.key, Value: payload}
		if errCreate := conn.Create(&setting).Error; errCreate != nil {
			if IsUniqueViolation(errCreate) {
				continue
			}
			return fmt.Errorf("db: seed setting %s: %w", def.key, errCreate)
		}
	}
	return nil
}

// isDuplicateObject reports whether the error is a duplicate DDL object error.
func isDuplicateObject(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate")
}
