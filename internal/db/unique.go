package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// pgUniqueViolationCode is the PostgreSQL error code for unique violations.
const pgUniqueViolationCode = "23505"

// IsUniqueViolation reports whether the error is a unique constraint violation
// on either supported dialect.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
