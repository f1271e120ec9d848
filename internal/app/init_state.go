package app

import (
	"fmt"

	"github.com/keymint-app/keymint/internal/models"
	"gorm.io/gorm"
)

// HasAdminInitialized reports whether setup has run, meaning at least one
// admin account exists. A database without the admins table counts as
// uninitialized rather than an error so a fresh DSN boots into the init
// flow instead of failing.
func HasAdminInitialized(conn *gorm.DB) (bool, error) {
	if conn == nil {
		return false, fmt.Errorf("nil db")
	}
	if !conn.Migrator().HasTable(&models.Admin{}) {
		return false, nil
	}
	var ids []uint64
	if errFind := conn.Model(&models.Admin{}).Limit(1).Pluck("id", &ids).Error; errFind != nil {
		return false, errFind
	}
	return len(ids) > 0, nil
}
