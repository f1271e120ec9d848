package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the database described by the DSN, picking the dialect
// from its shape: postgres:// URLs use the pgx driver, everything else is
// treated as a SQLite path.
func Open(dsn string) (*gorm.DB, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, fmt.Errorf("db: empty dsn")
	}

	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}

	lowered := strings.ToLower(trimmed)
	if strings.HasPrefix(lowered, "postgres://") || strings.HasPrefix(lowered, "postgresql://") {
		conn, errOpen := gorm.Open(postgres.Open(trimmed), gormCfg)
		if errOpen != nil {
			return nil, fmt.Errorf("db: open postgres: %w", errOpen)
		}
		sqlDB, errDB := conn.DB()
		if errDB != nil {
			return nil, fmt.Errorf("db: sql db: %w", errDB)
		}
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)
		return conn, nil
	}

	conn, errOpen := gorm.Open(sqlite.Open(sqliteDSN(trimmed)), gormCfg)
	if errOpen != nil {
		return nil, fmt.Errorf("db: open sqlite: %w", errOpen)
	}
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		return nil, fmt.Errorf("db: sql db: %w", errDB)
	}
	// SQLite allows a single writer; one connection serializes all writes.
	sqlDB.SetMaxOpenConns(1)
	return conn, nil
}

// sqliteDSN ensures SQLite DSNs carry the busy timeout and WAL parameters.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_busy_timeout=") {
		return dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + "_busy_timeout=5000&_journal_mode=WAL"
}
